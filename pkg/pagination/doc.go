// Package pagination provides cursor-based page fetching for the Discord
// ban list.
//
// Discord serves bans in ascending user ID order, at most 1000 per request,
// paged by an "after" user ID. The cursor stays valid while unbans shrink
// the remote list.
//
// Example usage:
//
//	plan, err := pagination.NewPlan(requested)
//	fetcher := pagination.NewBanFetcher(discordClient)
//	page, err := fetcher.FetchPage(ctx, guildID, pagination.Cursor{}, plan.PageSize)
//	cursor, err = cursor.Advance(page[len(page)-1].UserID)
//
// The fetcher:
//   - Rejects limits outside 1..MaxPageSize before calling the API
//   - Drops records at or before the cursor
//   - Returns an empty page once the ban list is exhausted
//   - Never retries; transport retries live in pkg/client
package pagination
