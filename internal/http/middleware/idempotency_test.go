package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

type lookupCall struct {
	client, scope, key string
}

// recordingLookup returns a lookup that records its arguments and answers
// with exists/err.
func recordingLookup(exists bool, err error) (IdempotencyLookup, *[]lookupCall) {
	var calls []lookupCall
	return func(_ context.Context, client, scope, key string, _ time.Time) (bool, error) {
		calls = append(calls, lookupCall{client, scope, key})
		return exists, err
	}, &calls
}

// idemRouter echoes what the validator left on the context.
func idemRouter(lookup IdempotencyLookup) *gin.Engine {
	r := gin.New()
	r.Use(RequestID(), IdempotencyValidator(IdempotencyOptions{MaxLen: 32}, lookup))
	echo := func(c *gin.Context) {
		key, _ := GetIdempotencyKey(c)
		c.JSON(http.StatusOK, gin.H{"key": key, "replay": IsReplay(c), "bypass": IsRateBypass(c)})
	}
	r.GET("/api/deal/:ref", echo)
	r.POST("/api/deal/:ref/like", echo)
	return r
}

func echoed(t *testing.T, body []byte) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(body, &m); err != nil {
		t.Fatalf("decode %s: %v", body, err)
	}
	return m
}

func TestIdempotency_NoHeaderAndReadsPassThrough(t *testing.T) {
	lookup, calls := recordingLookup(true, nil)
	r := idemRouter(lookup)

	w := serve(r, http.MethodPost, "/api/deal/notion/like", nil)
	if m := echoed(t, w.Body.Bytes()); m["key"] != "" || m["replay"] != false {
		t.Fatalf("no header: %v", m)
	}
	w = serve(r, http.MethodGet, "/api/deal/notion", nil, HeaderIdempotencyKey, "not valid at all")
	if w.Code != http.StatusOK {
		t.Fatalf("read with junk key rejected: %d", w.Code)
	}
	if len(*calls) != 0 {
		t.Fatalf("lookup called for %d non-keyed requests", len(*calls))
	}
}

func TestIdempotency_RejectsMalformedKeys(t *testing.T) {
	r := idemRouter(nil)
	for _, key := range []string{"has space", "semi;colon", strings.Repeat("k", 33)} {
		w := serve(r, http.MethodPost, "/api/deal/notion/like", nil, HeaderIdempotencyKey, key)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("key %q: status %d", key, w.Code)
		}
		var body map[string]string
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatal(err)
		}
		if body["code"] != codeBadRequest || body["message"] != "invalid Idempotency-Key" {
			t.Fatalf("key %q: body %v", key, body)
		}
	}
}

func TestIdempotency_ReplayIsScopedToClientAndRoute(t *testing.T) {
	lookup, calls := recordingLookup(true, nil)
	r := idemRouter(lookup)

	w := serve(r, http.MethodPost, "/api/deal/notion/like", nil, HeaderIdempotencyKey, "like-1")
	m := echoed(t, w.Body.Bytes())
	if m["key"] != "like-1" || m["replay"] != true || m["bypass"] != true {
		t.Fatalf("replay flags = %v", m)
	}
	want := lookupCall{client: "192.0.2.1", scope: "/api/deal/:ref/like", key: "like-1"}
	if len(*calls) != 1 || (*calls)[0] != want {
		t.Fatalf("lookup calls = %+v, want [%+v]", *calls, want)
	}
}

func TestIdempotency_LookupFailureProceedsAsNew(t *testing.T) {
	buf := captureLog(t)
	lookup, _ := recordingLookup(true, errors.New("database is locked"))
	r := idemRouter(lookup)

	w := serve(r, http.MethodPost, "/api/deal/notion/like", nil, HeaderIdempotencyKey, "like-2")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if m := echoed(t, w.Body.Bytes()); m["key"] != "like-2" || m["replay"] != false {
		t.Fatalf("flags = %v", m)
	}
	if !strings.Contains(buf.String(), "idempotency lookup failed") {
		t.Fatalf("failure not logged: %s", buf.String())
	}
}

func TestScope_FallsBackToPath(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request, _ = http.NewRequest(http.MethodPost, "/unrouted/thing", nil)
	if Scope(c) != "/unrouted/thing" {
		t.Fatalf("Scope = %q", Scope(c))
	}
	if ClientID(nil) != "" {
		t.Fatalf("nil context should have no client id")
	}
}
