// Package cleanup runs PurgeExpired on a cron schedule.
//
// Revocation records become useless once the token they describe has
// expired. A [Scheduler] deletes them periodically so the store stays
// bounded. The default schedule purges every six hours and once more daily
// at 02:00.
package cleanup
