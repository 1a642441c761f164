// Package testutil provides testing utilities for the Discord client and
// the unban engine.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"sync"

	"github.com/disgoorg/snowflake/v2"
)

// MockBan is one entry of the mock ban list.
type MockBan struct {
	ID         snowflake.ID
	Username   string
	GlobalName string
}

// ListCall records the parameters of one list-bans request.
type ListCall struct {
	After string
	Limit int
}

// MockResponse is a canned response for a failing endpoint.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
}

// MockDiscord is an in-memory Discord API serving one guild.
type MockDiscord struct {
	server *httptest.Server
	mu     sync.Mutex

	GuildID       snowflake.ID
	GuildName     string
	ApplicationID snowflake.ID
	AppName       string
	Token         string

	bans        []MockBan
	failDeletes map[snowflake.ID]MockResponse
	listErrors  []MockResponse
	roles       []map[string]any
	memberRoles []string

	// Tracking
	ListCalls   []ListCall
	DeleteCalls []snowflake.ID
	LastHeader  http.Header
}

// NewMockDiscord creates a mock server for guildID. The bot is given a role
// with BAN_MEMBERS by default.
func NewMockDiscord(guildID snowflake.ID) *MockDiscord {
	mock := &MockDiscord{
		GuildID:       guildID,
		GuildName:     "Test Guild",
		ApplicationID: 4242,
		AppName:       "Unban Bot",
		Token:         "test-token",
		failDeletes:   make(map[snowflake.ID]MockResponse),
		roles: []map[string]any{
			{"id": "900", "name": "@everyone", "permissions": "0"},
			{"id": "901", "name": "Moderator", "permissions": "4"},
		},
		memberRoles: []string{"901"},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /applications/@me", mock.handleApplication)
	mux.HandleFunc("GET /guilds/{guild}", mock.handleGuild)
	mux.HandleFunc("GET /guilds/{guild}/roles", mock.handleRoles)
	mux.HandleFunc("GET /guilds/{guild}/members/{user}", mock.handleMember)
	mux.HandleFunc("GET /guilds/{guild}/bans", mock.handleListBans)
	mux.HandleFunc("DELETE /guilds/{guild}/bans/{user}", mock.handleDeleteBan)

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.LastHeader = r.Header.Clone()
		mock.mu.Unlock()

		if r.Header.Get("Authorization") != "Bot "+mock.Token {
			writeError(w, http.StatusUnauthorized, 0, "401: Unauthorized")
			return
		}
		mux.ServeHTTP(w, r)
	}))

	return mock
}

// URL returns the mock server URL, usable as the client base URL.
func (m *MockDiscord) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockDiscord) Close() {
	m.server.Close()
}

// AddBans appends bans; the list is kept in ascending ID order.
func (m *MockDiscord) AddBans(bans ...MockBan) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bans = append(m.bans, bans...)
	sort.Slice(m.bans, func(i, j int) bool { return m.bans[i].ID < m.bans[j].ID })
}

// AddSequentialBans adds n bans with IDs first, first+1, ... and returns
// their IDs.
func (m *MockDiscord) AddSequentialBans(first snowflake.ID, n int) []snowflake.ID {
	ids := make([]snowflake.ID, 0, n)
	bans := make([]MockBan, 0, n)
	for i := 0; i < n; i++ {
		id := first + snowflake.ID(i)
		ids = append(ids, id)
		bans = append(bans, MockBan{ID: id, Username: fmt.Sprintf("user%d", id)})
	}
	m.AddBans(bans...)
	return ids
}

// FailDelete makes removing the ban of userID fail with resp.
func (m *MockDiscord) FailDelete(userID snowflake.ID, resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failDeletes[userID] = resp
}

// FailNextLists queues failing responses for upcoming list-bans requests.
func (m *MockDiscord) FailNextLists(resps ...MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listErrors = append(m.listErrors, resps...)
}

// SetMemberRoles replaces the role IDs of the bot member.
func (m *MockDiscord) SetMemberRoles(roleIDs ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.memberRoles = roleIDs
}

// BanCount returns the number of bans still present.
func (m *MockDiscord) BanCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.bans)
}

// GetListCalls returns a copy of the recorded list-bans calls.
func (m *MockDiscord) GetListCalls() []ListCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ListCall(nil), m.ListCalls...)
}

// GetDeleteCount returns the number of remove-ban requests received.
func (m *MockDiscord) GetDeleteCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.DeleteCalls)
}

func (m *MockDiscord) handleApplication(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"id":   m.ApplicationID.String(),
		"name": m.AppName,
	})
}

func (m *MockDiscord) handleGuild(w http.ResponseWriter, r *http.Request) {
	if !m.knownGuild(w, r) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":       m.GuildID.String(),
		"name":     m.GuildName,
		"owner_id": "1",
	})
}

func (m *MockDiscord) handleRoles(w http.ResponseWriter, r *http.Request) {
	if !m.knownGuild(w, r) {
		return
	}
	m.mu.Lock()
	roles := m.roles
	m.mu.Unlock()
	writeJSON(w, http.StatusOK, roles)
}

func (m *MockDiscord) handleMember(w http.ResponseWriter, r *http.Request) {
	if !m.knownGuild(w, r) {
		return
	}
	if r.PathValue("user") != m.ApplicationID.String() {
		writeError(w, http.StatusNotFound, 10007, "Unknown Member")
		return
	}
	m.mu.Lock()
	roles := append([]string{}, m.memberRoles...)
	m.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{
		"user":  map[string]any{"id": m.ApplicationID.String(), "username": m.AppName},
		"roles": roles,
	})
}

func (m *MockDiscord) handleListBans(w http.ResponseWriter, r *http.Request) {
	if !m.knownGuild(w, r) {
		return
	}

	limit := 1000
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 1000 {
			writeError(w, http.StatusBadRequest, 50035, "Invalid Form Body")
			return
		}
		limit = n
	}

	var after snowflake.ID
	afterRaw := r.URL.Query().Get("after")
	if afterRaw != "" {
		parsed, err := snowflake.Parse(afterRaw)
		if err != nil {
			writeError(w, http.StatusBadRequest, 50035, "Invalid Form Body")
			return
		}
		after = parsed
	}

	m.mu.Lock()
	m.ListCalls = append(m.ListCalls, ListCall{After: afterRaw, Limit: limit})
	if len(m.listErrors) > 0 {
		resp := m.listErrors[0]
		m.listErrors = m.listErrors[1:]
		m.mu.Unlock()
		writeResponse(w, resp)
		return
	}

	page := make([]map[string]any, 0, limit)
	for _, ban := range m.bans {
		if afterRaw != "" && ban.ID <= after {
			continue
		}
		user := map[string]any{
			"id":          ban.ID.String(),
			"username":    ban.Username,
			"global_name": nil,
		}
		if ban.GlobalName != "" {
			user["global_name"] = ban.GlobalName
		}
		page = append(page, map[string]any{"reason": nil, "user": user})
		if len(page) == limit {
			break
		}
	}
	m.mu.Unlock()

	writeJSON(w, http.StatusOK, page)
}

func (m *MockDiscord) handleDeleteBan(w http.ResponseWriter, r *http.Request) {
	if !m.knownGuild(w, r) {
		return
	}

	userID, err := snowflake.Parse(r.PathValue("user"))
	if err != nil {
		writeError(w, http.StatusBadRequest, 50035, "Invalid Form Body")
		return
	}

	m.mu.Lock()
	m.DeleteCalls = append(m.DeleteCalls, userID)
	if resp, ok := m.failDeletes[userID]; ok {
		m.mu.Unlock()
		writeResponse(w, resp)
		return
	}

	idx := -1
	for i, ban := range m.bans {
		if ban.ID == userID {
			idx = i
			break
		}
	}
	if idx < 0 {
		m.mu.Unlock()
		writeError(w, http.StatusNotFound, 10026, "Unknown Ban")
		return
	}
	m.bans = append(m.bans[:idx], m.bans[idx+1:]...)
	m.mu.Unlock()

	w.WriteHeader(http.StatusNoContent)
}

func (m *MockDiscord) knownGuild(w http.ResponseWriter, r *http.Request) bool {
	if r.PathValue("guild") != m.GuildID.String() {
		writeError(w, http.StatusNotFound, 10004, "Unknown Guild")
		return false
	}
	return true
}

// NewMissingPermissionsResponse creates a 403 Missing Permissions response.
func NewMissingPermissionsResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusForbidden,
		Body:       `{"message": "Missing Permissions", "code": 50013}`,
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"message": "Internal Server Error", "code": 0}`,
	}
}

// NewRateLimitResponse creates a 429 Too Many Requests response.
func NewRateLimitResponse(retryAfter float64) MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       fmt.Sprintf(`{"message": "You are being rate limited.", "retry_after": %g, "global": false}`, retryAfter),
		Headers: map[string]string{
			"X-RateLimit-Remaining":   "0",
			"X-RateLimit-Reset-After": fmt.Sprintf("%g", retryAfter),
		},
	}
}

func writeResponse(w http.ResponseWriter, resp MockResponse) {
	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		w.Write([]byte(resp.Body))
	}
}

func writeError(w http.ResponseWriter, status, code int, message string) {
	writeJSON(w, status, map[string]any{"message": message, "code": code})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
