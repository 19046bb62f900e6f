package main

import (
	"context"
	"fmt"
	"net/http/httptest"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/net/websocket"

	"github.com/kayprogrammer/socialnet-v2/internal/relay"
)

// token 即用户 id；任何用户都可加入任何会话
type openAccess struct{}

func (openAccess) Authenticate(_ context.Context, token string) (string, error) { return token, nil }
func (openAccess) Authorize(context.Context, string, string) error             { return nil }
func (openAccess) VerifyEcho(context.Context, string, string, relay.Event) error {
	return nil
}

func envInt(name string, def int) int {
	if s := os.Getenv(name); s != "" {
		if v, e := strconv.Atoi(s); e == nil && v > 0 {
			return v
		}
	}
	return def
}

func main() {
	SESSIONS := envInt("SESSIONS", 200)
	EVENTS := envInt("EVENTS", 500)
	QUEUE := envInt("QUEUE", 64)
	INTERVAL := time.Duration(envInt("INTERVAL_US", 200)) * time.Microsecond

	gin.SetMode(gin.ReleaseMode)
	hub := relay.NewHub()
	srv := relay.NewServer(hub, hub, openAccess{}, openAccess{}, relay.Options{QueueSize: QUEUE, FramesPerSecond: 1000, Burst: 1000}, nil)
	r := gin.New()
	r.GET("/ws/chats/:id/", srv.ChatSocket)
	ts := httptest.NewServer(r)
	defer ts.Close()

	chatID := uuid.New().String()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/chats/" + chatID + "/"

	var sent sync.Map // 事件 id -> 发布时间
	conns := make([]*websocket.Conn, 0, SESSIONS)
	for i := 0; i < SESSIONS; i++ {
		conn, err := websocket.Dial(wsURL+"?token="+uuid.New().String(), "", ts.URL)
		if err != nil {
			panic(err)
		}
		conns = append(conns, conn)
	}
	for hub.Sessions(relay.ChatTopic(chatID)) < SESSIONS {
		time.Sleep(5 * time.Millisecond)
	}

	var mu sync.Mutex
	latencies := make([]time.Duration, 0, SESSIONS*EVENTS)
	received := 0
	var wg sync.WaitGroup
	wg.Add(len(conns))
	for _, conn := range conns {
		go func(c *websocket.Conn) {
			defer wg.Done()
			local := make([]time.Duration, 0, EVENTS)
			_ = c.SetReadDeadline(time.Now().Add(30 * time.Second))
			for len(local) < EVENTS {
				var ev relay.Event
				if err := websocket.JSON.Receive(c, &ev); err != nil {
					break
				}
				if at, ok := sent.Load(ev.ID); ok {
					local = append(local, time.Since(at.(time.Time)))
				}
			}
			mu.Lock()
			latencies = append(latencies, local...)
			received += len(local)
			mu.Unlock()
		}(conn)
	}

	ctx := context.Background()
	topic := relay.ChatTopic(chatID)
	st := time.Now()
	for i := 0; i < EVENTS; i++ {
		id := uuid.New().String()
		sent.Store(id, time.Now())
		_ = hub.Publish(ctx, topic, relay.Event{Status: relay.StatusCreated, ID: id})
		if INTERVAL > 0 {
			time.Sleep(INTERVAL)
		}
	}
	publishDur := time.Since(st)
	wg.Wait()
	for _, c := range conns {
		_ = c.Close()
	}

	pct := func(vs []time.Duration, p float64) time.Duration {
		if len(vs) == 0 {
			return 0
		}
		xs := append([]time.Duration(nil), vs...)
		sort.Slice(xs, func(i, j int) bool { return xs[i] < xs[j] })
		k := int(float64(len(xs)) * p)
		if k >= len(xs) {
			k = len(xs) - 1
		}
		return xs[k]
	}

	var sum time.Duration
	for _, d := range latencies {
		sum += d
	}
	avg := time.Duration(0)
	if len(latencies) > 0 {
		avg = sum / time.Duration(len(latencies))
	}
	expected := SESSIONS * EVENTS
	fmt.Printf("SESSIONS=%d EVENTS=%d QUEUE=%d INTERVAL=%v\n", SESSIONS, EVENTS, QUEUE, INTERVAL)
	fmt.Printf("publish: total=%v per-event=%v\n", publishDur, publishDur/time.Duration(EVENTS))
	fmt.Printf("delivered=%d/%d (dropped %.2f%%)\n", received, expected, 100*float64(expected-received)/float64(expected))
	fmt.Printf("latency: avg=%v p50=%v p95=%v p99=%v\n", avg, pct(latencies, 0.50), pct(latencies, 0.95), pct(latencies, 0.99))
}
