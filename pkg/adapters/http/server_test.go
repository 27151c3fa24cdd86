package http

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/ludics"
	"github.com/aretw0/ludics/internal/moves"
	"github.com/aretw0/ludics/pkg/domain"
)

func newTestServer(t *testing.T, opts ...ludics.Option) (http.Handler, *StreamManager) {
	t.Helper()
	sm := NewStreamManager()
	eng, err := ludics.New(append(opts, ludics.WithLifecycleHooks(sm.Hooks()))...)
	require.NoError(t, err)
	return NewHandler(eng, WithStreams(sm)), sm
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func proper(pol domain.Polarity, path, expr string, ram ...string) domain.Act {
	return domain.Act{Kind: domain.KindProper, Polarity: pol, LocusPath: path, Expression: expr, Ramification: ram}
}

func seedBudget(t *testing.T, h http.Handler) {
	t.Helper()
	for _, d := range []*domain.Design{
		domain.NewDesign("prop", "budget", "alice", domain.PolarityP),
		domain.NewDesign("opp", "budget", "bob", domain.PolarityO),
	} {
		require.Equal(t, http.StatusCreated, do(t, h, "POST", "/designs", d).Code)
	}
	acts := []struct {
		id  string
		act domain.Act
	}{
		{"prop", proper(domain.PolarityP, "0", "claim", "1", "2")},
		{"prop", proper(domain.PolarityP, "0.1", "first")},
		{"prop", proper(domain.PolarityP, "0.2", "second")},
		{"opp", proper(domain.PolarityO, "0", "", "1", "2")},
		{"opp", proper(domain.PolarityO, "0.1", "")},
		{"opp", proper(domain.PolarityO, "0.2", "")},
	}
	for _, a := range acts {
		w := do(t, h, "POST", "/designs/"+a.id+"/acts", a.act)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}
}

func TestHealthAndInfo(t *testing.T) {
	h, _ := newTestServer(t)

	w := do(t, h, "GET", "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decodeBody[map[string]string](t, w)["status"])

	w = do(t, h, "GET", "/info", nil)
	info := decodeBody[map[string]string](t, w)
	assert.Equal(t, "ludics-http", info["app"])
	assert.Equal(t, strings.TrimSpace(ludics.Version), info["version"])
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestDesignLifecycle(t *testing.T) {
	h, _ := newTestServer(t)

	d := domain.NewDesign("d1", "budget", "alice", domain.PolarityP)
	assert.Equal(t, http.StatusCreated, do(t, h, "POST", "/designs", d).Code)
	assert.Equal(t, http.StatusConflict, do(t, h, "POST", "/designs", d).Code)

	w := do(t, h, "POST", "/designs/d1/acts", proper(domain.PolarityP, "0", "claim", "1"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Len(t, decodeBody[domain.Design](t, w).Acts, 1)

	w = do(t, h, "POST", "/designs/d1/acts", proper(domain.PolarityP, "0.9", "orphan"))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = do(t, h, "GET", "/designs?dialogue_id=budget", nil)
	assert.Equal(t, []string{"d1"}, decodeBody[[]string](t, w))

	w = do(t, h, "GET", "/dialogues/budget/loci", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, decodeBody[[]domain.Locus](t, w))

	assert.Equal(t, http.StatusNoContent, do(t, h, "DELETE", "/designs/d1", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, "GET", "/designs/d1", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, "DELETE", "/designs/d1", nil).Code)
}

func TestCreateDesign_Invalid(t *testing.T) {
	h, _ := newTestServer(t)

	req := httptest.NewRequest("POST", "/designs", strings.NewReader("{"))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, "POST", "/designs", domain.Design{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decodeBody[map[string]string](t, w)["error"], "design id")
}

func TestEnsureLocus(t *testing.T) {
	h, _ := newTestServer(t)

	w := do(t, h, "POST", "/loci", locusRequest{DialogueID: "budget", Path: "0.1.2"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "0.1.2", decodeBody[domain.Locus](t, w).Path)

	w = do(t, h, "POST", "/loci", locusRequest{Path: "0"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStepInteraction(t *testing.T) {
	h, _ := newTestServer(t)
	seedBudget(t, h)

	w := do(t, h, "POST", "/interactions", interactionRequest{PositiveID: "prop", NegativeID: "opp"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	in := decodeBody[domain.Interaction](t, w)
	assert.Equal(t, "prop", in.PositiveID)
	assert.NotEmpty(t, in.Pairs)

	w = do(t, h, "POST", "/interactions", interactionRequest{PositiveID: "prop", NegativeID: "prop"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, "POST", "/interactions", interactionRequest{PositiveID: "prop", NegativeID: "missing"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDispStrategyAndCheck(t *testing.T) {
	h, _ := newTestServer(t)
	seedBudget(t, h)

	w := do(t, h, "GET", "/designs/prop/disp", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	set := decodeBody[domain.DisputeSet](t, w)
	assert.Equal(t, 1, set.Count)
	assert.Equal(t, "opp", set.Disputes[0].CounterDesignID)

	w = do(t, h, "GET", "/designs/prop/disp?counter=opp", nil)
	assert.Equal(t, 1, decodeBody[domain.DisputeSet](t, w).Count)

	w = do(t, h, "GET", "/designs/prop/strategy", nil)
	require.Equal(t, http.StatusOK, w.Code)
	out := decodeBody[struct {
		Strategy *domain.Strategy `json:"strategy"`
	}](t, w)
	require.NotNil(t, out.Strategy)
	assert.Equal(t, 1, out.Strategy.PlayCount)

	w = do(t, h, "POST", "/strategies/design", strategyRequest{Strategy: out.Strategy})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotEmpty(t, decodeBody[domain.Design](t, w).Acts)

	w = do(t, h, "POST", "/strategies/roundtrip", strategyRequest{Strategy: out.Strategy, CounterIDs: []string{"opp"}})
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(t, h, "GET", "/designs/prop/check", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decodeBody[ludics.CheckReport](t, w).AllHold)

	w = do(t, h, "GET", "/designs/prop/roundtrip", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, h, "GET", "/designs/ghost/disp", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBehaviourAndIncarnation(t *testing.T) {
	h, _ := newTestServer(t)
	seedBudget(t, h)

	w := do(t, h, "GET", "/dialogues/budget/behaviour?design=prop", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	c := decodeBody[ludics.BehaviourClosure](t, w)
	assert.Empty(t, c.Orthogonal, "prop and opp get stuck")
	assert.Equal(t, []string{"prop"}, c.Members)

	require.Equal(t, http.StatusCreated, do(t, h, "POST", "/designs", domain.NewDesign("skeptic", "budget", "carol", domain.PolarityO)).Code)
	require.Equal(t, http.StatusOK, do(t, h, "POST", "/designs/skeptic/acts", proper(domain.PolarityO, "0", "", "1", "2")).Code)
	daimon := domain.Act{Kind: domain.KindDaimon, Polarity: domain.PolarityO, LocusPath: "0.1"}
	require.Equal(t, http.StatusOK, do(t, h, "POST", "/designs/skeptic/acts", daimon).Code)

	w = do(t, h, "GET", "/dialogues/budget/behaviour?design=prop", nil)
	c = decodeBody[ludics.BehaviourClosure](t, w)
	assert.Equal(t, []string{"skeptic"}, c.Orthogonal)
	assert.True(t, c.IsBehaviour)

	w = do(t, h, "GET", "/designs/prop/incarnation", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	inc := decodeBody[ludics.DesignIncarnation](t, w)
	assert.Equal(t, []string{"skeptic"}, inc.Counters)
	assert.Equal(t, []string{"0.2"}, inc.Dropped)

	w = do(t, h, "GET", "/dialogues/budget/behaviour?design=prop&design=opp", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = do(t, h, "GET", "/dialogues/budget/behaviour?design=ghost", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestComputePlays(t *testing.T) {
	h, _ := newTestServer(t)

	w := do(t, h, "POST", "/plays", playsRequest{})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestCloneSubtree(t *testing.T) {
	h, _ := newTestServer(t)
	seedBudget(t, h)

	w := do(t, h, "POST", "/designs/prop/clone", cloneRequest{From: "0.1", To: "0.7"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(t, h, "POST", "/designs/prop/clone", cloneRequest{From: "0.1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestApplyMove(t *testing.T) {
	h, _ := newTestServer(t)

	type stepResponse struct {
		Step   ludics.MoveStep `json:"step"`
		Closed bool            `json:"closed"`
	}

	w := do(t, h, "POST", "/dialogues/bridge/moves", ludics.Move{Kind: "assert", Expression: "the bridge is safe"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := decodeBody[stepResponse](t, w)
	require.Len(t, res.Step.Acts, 2, "the assertion and its receipt")
	assert.Equal(t, domain.PolarityP, res.Step.Acts[0].Polarity)
	assert.Equal(t, "0", res.Step.Acts[0].LocusPath)
	assert.Equal(t, domain.PolarityO, res.Step.Acts[1].Polarity)
	assert.Equal(t, "0", res.Step.Acts[1].LocusPath)
	assert.Equal(t, "true", res.Step.Acts[1].Meta[moves.MetaReceipt])
	assert.False(t, res.Closed)

	w = do(t, h, "POST", "/dialogues/bridge/moves", ludics.Move{Kind: "WHY", Target: "0"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res = decodeBody[stepResponse](t, w)
	assert.Equal(t, domain.PolarityO, res.Step.Acts[0].Polarity)
	assert.Equal(t, "0.1", res.Step.Acts[0].LocusPath)

	w = do(t, h, "POST", "/dialogues/bridge/moves", ludics.Move{Kind: "shout"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestStreamManager_Broadcast(t *testing.T) {
	sm := NewStreamManager()
	scoped, cancelScoped := sm.Subscribe("budget")
	all, cancelAll := sm.Subscribe("")
	defer cancelAll()

	sm.Broadcast("budget", "one")
	sm.Broadcast("other", "two")

	assert.Equal(t, "one", <-scoped)
	assert.Equal(t, "one", <-all)
	assert.Equal(t, "two", <-all)
	assert.Len(t, scoped, 0)

	cancelScoped()
	cancelScoped()
	assert.Equal(t, 0, sm.Subscribers("budget"))
	_, open := <-scoped
	assert.False(t, open)
}

func TestStreamManager_Hooks(t *testing.T) {
	h, sm := newTestServer(t)
	ch, cancel := sm.Subscribe("budget")
	defer cancel()

	d := domain.NewDesign("d1", "budget", "alice", domain.PolarityP)
	require.Equal(t, http.StatusCreated, do(t, h, "POST", "/designs", d).Code)
	require.Equal(t, http.StatusOK, do(t, h, "POST", "/designs/d1/acts", proper(domain.PolarityP, "0", "claim")).Code)

	select {
	case msg := <-ch:
		var e domain.DesignEvent
		require.NoError(t, json.Unmarshal([]byte(msg), &e))
		assert.Equal(t, domain.EventActAppended, e.Type)
		assert.Equal(t, "d1", e.DesignID)
		assert.Equal(t, "budget", e.Deliberation)
	case <-time.After(time.Second):
		t.Fatal("no event broadcast")
	}
}

func TestSubscribeEvents(t *testing.T) {
	h, sm := newTestServer(t)
	srv := httptest.NewServer(h)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, "GET", srv.URL+"/events?dialogue_id=budget", nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event: ping\n", line)

	require.Eventually(t, func() bool { return sm.Subscribers("budget") == 1 }, time.Second, 5*time.Millisecond)
	sm.Broadcast("budget", `{"type":"act_appended"}`)

	for {
		line, err = reader.ReadString('\n')
		require.NoError(t, err)
		if strings.HasPrefix(line, "data: {") {
			break
		}
	}
	assert.Equal(t, "data: {\"type\":\"act_appended\"}\n", line)
}

func TestMetricsHandler(t *testing.T) {
	eng, err := ludics.New()
	require.NoError(t, err)
	h := NewHandler(eng, WithMetricsHandler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ludics_up 1\n"))
	})))

	w := do(t, h, "GET", "/metrics", nil)
	assert.Equal(t, "ludics_up 1\n", w.Body.String())
}
