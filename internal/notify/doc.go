// Package notify pushes emergency events to external webhook targets
// (Slack, Teams, or a generic JSON POST). Webhook URLs are resolved from
// environment variables so secrets stay out of the config file.
package notify
