package unban

import (
	"fmt"
	"io"

	"github.com/Sternrassler/guild-unban/pkg/pagination"
)

// Reporter receives the user-facing progress of a run.
type Reporter interface {
	// Attempt is called before each unban with the attempt ordinal.
	Attempt(ordinal int, record pagination.BanRecord)
	// Failure is called after a failed unban with the same ordinal.
	Failure(ordinal int, reason string)
	// NothingToUnban is called when the first page of a single-page run is empty.
	NothingToUnban()
	// NoMoreUsers is called when a multi-page run hits an empty page.
	NoMoreUsers()
	// Summary is called once at the end of every run.
	Summary(unbanned int)
}

// ConsoleReporter writes progress lines to an io.Writer.
type ConsoleReporter struct {
	w io.Writer
}

// NewConsoleReporter creates a reporter writing to w.
func NewConsoleReporter(w io.Writer) *ConsoleReporter {
	return &ConsoleReporter{w: w}
}

func (r *ConsoleReporter) Attempt(ordinal int, record pagination.BanRecord) {
	fmt.Fprintf(r.w, "%d - Unbanning %s (%s)\n", ordinal, record.DisplayName, record.UserID)
}

func (r *ConsoleReporter) Failure(ordinal int, reason string) {
	fmt.Fprintf(r.w, "%d - Error: %s\n", ordinal, reason)
}

func (r *ConsoleReporter) NothingToUnban() {
	fmt.Fprintln(r.w, "No users to unban.")
}

func (r *ConsoleReporter) NoMoreUsers() {
	fmt.Fprintln(r.w, "No more users to unban.")
}

func (r *ConsoleReporter) Summary(unbanned int) {
	fmt.Fprintf(r.w, "Unbanned %d users.\n", unbanned)
}
