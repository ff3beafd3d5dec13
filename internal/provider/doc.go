// Package provider supplies the two interchangeable metric sources and the
// startup resolver that picks between them.
//
// The privileged provider is an opaque compiled kernel discovered as
// emergence_kernel.so in a well-known directory; the fallback provider
// derives approximate κ/ε from environment signals (seeded synthetic values
// or a scraped Prometheus endpoint). Resolution is fallback-first: it never
// raises, it only selects PRIVILEGED vs FALLBACK and records why.
package provider
