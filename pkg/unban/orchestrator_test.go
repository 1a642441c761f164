package unban

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/Sternrassler/guild-unban/pkg/pagination"
	"github.com/disgoorg/snowflake/v2"
)

const testGuild = snowflake.ID(777)

type fetchCall struct {
	cursor pagination.Cursor
	limit  int
}

// fakeGuild is an in-memory ban list acting as both PageFetcher and Unbanner.
type fakeGuild struct {
	bans  []snowflake.ID
	fails map[snowflake.ID]string

	calls      []fetchCall
	failFetch  map[int]error // by 1-based fetch call
	executions int
	onExecute  func(n int)
}

func newFakeGuild(n int) *fakeGuild {
	g := &fakeGuild{fails: map[snowflake.ID]string{}, failFetch: map[int]error{}}
	for i := 1; i <= n; i++ {
		g.bans = append(g.bans, snowflake.ID(i))
	}
	return g
}

func (g *fakeGuild) FetchPage(_ context.Context, _ snowflake.ID, cursor pagination.Cursor, limit int) ([]pagination.BanRecord, error) {
	g.calls = append(g.calls, fetchCall{cursor: cursor, limit: limit})
	if err, ok := g.failFetch[len(g.calls)]; ok {
		return nil, err
	}

	after, set := cursor.After()
	page := []pagination.BanRecord{}
	for _, id := range g.bans {
		if set && id <= after {
			continue
		}
		page = append(page, pagination.BanRecord{UserID: id, DisplayName: fmt.Sprintf("user%d", id)})
		if len(page) == limit {
			break
		}
	}
	return page, nil
}

func (g *fakeGuild) Execute(_ context.Context, _ snowflake.ID, userID snowflake.ID) Outcome {
	g.executions++
	if g.onExecute != nil {
		defer g.onExecute(g.executions)
	}
	if reason, ok := g.fails[userID]; ok {
		return Failed(reason)
	}
	i := sort.Search(len(g.bans), func(i int) bool { return g.bans[i] >= userID })
	if i == len(g.bans) || g.bans[i] != userID {
		return Failed("Unknown Ban")
	}
	g.bans = append(g.bans[:i], g.bans[i+1:]...)
	return Succeeded()
}

type harness struct {
	guild *fakeGuild
	out   *bytes.Buffer
	dir   string
	orch  *Orchestrator
	start time.Time
}

func newHarness(t *testing.T, guild *fakeGuild) *harness {
	t.Helper()
	h := &harness{
		guild: guild,
		out:   &bytes.Buffer{},
		dir:   t.TempDir(),
		start: time.UnixMilli(1700000000000),
	}
	h.orch = NewOrchestrator(guild, guild, NewConsoleReporter(h.out), Config{
		OutputDir: h.dir,
		Now:       func() time.Time { return h.start },
	})
	return h
}

func (h *harness) output() []string {
	return strings.Split(strings.TrimRight(h.out.String(), "\n"), "\n")
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return lines
}

func TestRun_SinglePage(t *testing.T) {
	h := newHarness(t, newFakeGuild(3))

	result, err := h.orch.Run(context.Background(), testGuild, 5)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(h.guild.calls) != 1 {
		t.Fatalf("fetches = %d, want 1", len(h.guild.calls))
	}
	if call := h.guild.calls[0]; !call.cursor.IsZero() || call.limit != 5 {
		t.Errorf("fetch = %+v, want no cursor and limit 5", call)
	}

	if result.Unbanned != 3 || result.Failed != 0 {
		t.Errorf("result = %+v, want 3 unbanned, 0 failed", result)
	}

	wantPath := filepath.Join(h.dir, "unban_report_777_1700000000000.txt")
	if len(result.AuditFiles) != 1 || result.AuditFiles[0] != wantPath {
		t.Fatalf("AuditFiles = %v, want [%s]", result.AuditFiles, wantPath)
	}
	lines := readLines(t, wantPath)
	want := []string{"user1 (1)", "user2 (2)", "user3 (3)"}
	if strings.Join(lines, "|") != strings.Join(want, "|") {
		t.Errorf("audit lines = %v, want %v", lines, want)
	}

	out := h.output()
	wantOut := []string{
		"1 - Unbanning user1 (1)",
		"2 - Unbanning user2 (2)",
		"3 - Unbanning user3 (3)",
		"Unbanned 3 users.",
	}
	if strings.Join(out, "|") != strings.Join(wantOut, "|") {
		t.Errorf("output = %q, want %q", out, wantOut)
	}
}

func TestRun_SinglePageEmpty(t *testing.T) {
	h := newHarness(t, newFakeGuild(0))

	result, err := h.orch.Run(context.Background(), testGuild, 10)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if result.Unbanned != 0 || !result.Exhausted {
		t.Errorf("result = %+v, want 0 unbanned and exhausted", result)
	}
	if len(result.AuditFiles) != 1 {
		t.Fatalf("AuditFiles = %v, want one file", result.AuditFiles)
	}
	info, err := os.Stat(result.AuditFiles[0])
	if err != nil {
		t.Fatalf("audit file missing: %v", err)
	}
	if info.Size() != 0 {
		t.Errorf("audit file size = %d, want 0", info.Size())
	}

	out := h.output()
	if len(out) != 2 || out[0] != "No users to unban." || out[1] != "Unbanned 0 users." {
		t.Errorf("output = %q", out)
	}
}

func TestRun_MultiBatchWithFailure(t *testing.T) {
	guild := newFakeGuild(1500)
	guild.fails[1007] = "Missing Permissions"
	h := newHarness(t, guild)

	result, err := h.orch.Run(context.Background(), testGuild, 1500)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(guild.calls) != 2 {
		t.Fatalf("fetches = %d, want 2", len(guild.calls))
	}
	for i, call := range guild.calls {
		if call.limit != pagination.MaxPageSize {
			t.Errorf("fetch %d limit = %d, want %d", i+1, call.limit, pagination.MaxPageSize)
		}
	}
	if !guild.calls[0].cursor.IsZero() {
		t.Errorf("first fetch cursor = %s, want start", guild.calls[0].cursor)
	}
	if after, _ := guild.calls[1].cursor.After(); after != 1000 {
		t.Errorf("second fetch cursor = %d, want 1000", after)
	}

	if result.Unbanned != 1499 || result.Failed != 1 {
		t.Errorf("result = %+v, want 1499 unbanned, 1 failed", result)
	}
	if len(result.AuditFiles) != 2 {
		t.Fatalf("AuditFiles = %v, want 2 files", result.AuditFiles)
	}

	first := readLines(t, filepath.Join(h.dir, "unban_report_777_batch_1_1700000000000.txt"))
	second := readLines(t, filepath.Join(h.dir, "unban_report_777_batch_2_1700000000000.txt"))
	if len(first) != 1000 {
		t.Errorf("batch 1 lines = %d, want 1000", len(first))
	}
	if len(second) != 499 {
		t.Errorf("batch 2 lines = %d, want 499", len(second))
	}
	for _, line := range second {
		if line == "user1007 (1007)" {
			t.Error("failed unban recorded in audit file")
		}
	}

	out := h.output()
	// Page 2 starts at line index 1000; its 7th attempt fails.
	if out[1000] != "1 - Unbanning user1001 (1001)" {
		t.Errorf("first line of batch 2 = %q, ordinal should reset", out[1000])
	}
	if out[1006] != "7 - Unbanning user1007 (1007)" || out[1007] != "7 - Error: Missing Permissions" {
		t.Errorf("failure lines = %q, %q", out[1006], out[1007])
	}
	if out[1008] != "8 - Unbanning user1008 (1008)" {
		t.Errorf("line after failure = %q, want ordinal 8", out[1008])
	}
	if out[len(out)-1] != "Unbanned 1499 users." {
		t.Errorf("summary = %q", out[len(out)-1])
	}
}

func TestRun_CursorFollowsFailedLastRecord(t *testing.T) {
	guild := newFakeGuild(2000)
	guild.fails[1000] = "Unknown Ban"
	h := newHarness(t, guild)

	result, err := h.orch.Run(context.Background(), testGuild, 2000)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if after, _ := guild.calls[1].cursor.After(); after != 1000 {
		t.Errorf("second fetch cursor = %d, want 1000", after)
	}
	if result.Unbanned != 1999 {
		t.Errorf("Unbanned = %d, want 1999", result.Unbanned)
	}
	// The failed record is still banned but is not retried in batch 2.
	if guild.executions != 2000 {
		t.Errorf("executions = %d, want 2000", guild.executions)
	}
}

func TestRun_StopsOnEmptyPage(t *testing.T) {
	h := newHarness(t, newFakeGuild(1500))

	result, err := h.orch.Run(context.Background(), testGuild, 5000)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(h.guild.calls) != 3 {
		t.Errorf("fetches = %d, want 3 (stop before the 5-page budget)", len(h.guild.calls))
	}
	if result.Unbanned != 1500 || !result.Exhausted {
		t.Errorf("result = %+v, want 1500 unbanned and exhausted", result)
	}
	if len(result.AuditFiles) != 2 {
		t.Errorf("AuditFiles = %v, want 2 (no file for the empty page)", result.AuditFiles)
	}

	out := h.output()
	if out[len(out)-2] != "No more users to unban." {
		t.Errorf("line before summary = %q", out[len(out)-2])
	}
}

func TestRun_PageBudget(t *testing.T) {
	tests := []struct {
		requested int
		present   int
		fetches   int
	}{
		{requested: 1, present: 10, fetches: 1},
		{requested: 1000, present: 5000, fetches: 1},
		{requested: 1001, present: 5000, fetches: 2},
		{requested: 3000, present: 5000, fetches: 3},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d_of_%d", tt.requested, tt.present), func(t *testing.T) {
			h := newHarness(t, newFakeGuild(tt.present))
			if _, err := h.orch.Run(context.Background(), testGuild, tt.requested); err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if len(h.guild.calls) != tt.fetches {
				t.Errorf("fetches = %d, want %d", len(h.guild.calls), tt.fetches)
			}
		})
	}
}

func TestRun_Idempotent(t *testing.T) {
	guild := newFakeGuild(0)
	h := newHarness(t, guild)

	for i := 0; i < 2; i++ {
		h.start = h.start.Add(time.Millisecond)
		result, err := h.orch.Run(context.Background(), testGuild, 1500)
		if err != nil {
			t.Fatalf("run %d: Run() error = %v", i+1, err)
		}
		if result.Unbanned != 0 || !result.Exhausted || len(result.AuditFiles) != 0 {
			t.Errorf("run %d: result = %+v, want empty exhausted run", i+1, result)
		}
	}
	if strings.Count(h.out.String(), "No more users to unban.") != 2 {
		t.Errorf("output = %q, want two empty-page terminations", h.out.String())
	}
}

func TestRun_FetchErrorIsFatal(t *testing.T) {
	guild := newFakeGuild(3000)
	remoteErr := errors.New("503 Service Unavailable")
	guild.failFetch[2] = remoteErr
	h := newHarness(t, guild)

	result, err := h.orch.Run(context.Background(), testGuild, 3000)
	if !errors.Is(err, remoteErr) {
		t.Fatalf("Run() error = %v, want fetch error", err)
	}

	if len(guild.calls) != 2 {
		t.Errorf("fetches = %d, want 2", len(guild.calls))
	}
	if result.Unbanned != 1000 {
		t.Errorf("Unbanned = %d, want 1000", result.Unbanned)
	}
	if lines := readLines(t, result.AuditFiles[0]); len(lines) != 1000 {
		t.Errorf("batch 1 lines = %d, want 1000", len(lines))
	}
	if !strings.HasSuffix(h.out.String(), "Unbanned 1000 users.\n") {
		t.Error("summary not reported after fatal error")
	}
}

func TestRun_AuditErrorIsFatal(t *testing.T) {
	guild := newFakeGuild(3)
	h := newHarness(t, guild)
	h.orch.config.OutputDir = filepath.Join(h.dir, "missing")

	_, err := h.orch.Run(context.Background(), testGuild, 3)
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("Run() error = %v, want os.ErrNotExist", err)
	}
	if len(guild.calls) != 0 || guild.executions != 0 {
		t.Errorf("fetches = %d, executions = %d, want none", len(guild.calls), guild.executions)
	}
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	guild := newFakeGuild(10)
	guild.onExecute = func(n int) {
		if n == 3 {
			cancel()
		}
	}
	h := newHarness(t, guild)

	result, err := h.orch.Run(ctx, testGuild, 10)
	if !errors.Is(err, ErrCancelled) || !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want ErrCancelled wrapping context.Canceled", err)
	}
	if result.Unbanned != 3 || guild.executions != 3 {
		t.Errorf("unbanned = %d, executions = %d, want 3 and 3", result.Unbanned, guild.executions)
	}
	if lines := readLines(t, result.AuditFiles[0]); len(lines) != 3 {
		t.Errorf("audit lines = %d, want 3", len(lines))
	}
}

func TestRun_InvalidCount(t *testing.T) {
	h := newHarness(t, newFakeGuild(1))

	if _, err := h.orch.Run(context.Background(), testGuild, 0); !errors.Is(err, pagination.ErrInvalidCount) {
		t.Errorf("Run(0) error = %v, want ErrInvalidCount", err)
	}
	if len(h.guild.calls) != 0 {
		t.Error("fetch issued for invalid count")
	}
}
