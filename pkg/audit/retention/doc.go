// Package retention bounds the audit trail by age and record count, on a
// cron schedule.
package retention
