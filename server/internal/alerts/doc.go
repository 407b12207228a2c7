// Package alerts evaluates feed-health rules after each pipeline run and
// delivers webhook notifications to Slack, Teams, or generic HTTP targets.
// Rules see only the Runner's feed status, never standings history.
package alerts
