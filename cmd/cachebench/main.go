package main

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/kayprogrammer/socialnet-v2/internal/model"
	"github.com/kayprogrammer/socialnet-v2/internal/repository"
	"github.com/kayprogrammer/socialnet-v2/internal/service"
	"github.com/kayprogrammer/socialnet-v2/pkg/database"
)

// 压测用户目录快照查询，模拟列表接口的调用方式：
// 每页一次 LookupMany，携带一批发送者/所有者 id
func main() {
	ctx := context.Background()

	userCount := envInt("USERS", 20000)
	requests := envInt("REQUESTS", 5000)
	batch := envInt("BATCH", 40)

	var db *gorm.DB
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		db = must(gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true}))
		mustDo(db.Exec("DROP TABLE IF EXISTS users CASCADE").Error)
	} else {
		db = must(database.OpenSQLite(":memory:"))
	}
	mustDo(model.AutoMigrate(db))

	fmt.Println("Setting up users...")
	ids := make([]string, userCount)
	users := make([]model.User, userCount)
	for i := range users {
		ids[i] = uuid.NewString()
		users[i] = model.User{
			ID:        ids[i],
			Username:  fmt.Sprintf("user_%d", i),
			Email:     fmt.Sprintf("user_%d@example.com", i),
			FirstName: "User",
			LastName:  strconv.Itoa(i),
		}
	}
	mustDo(db.CreateInBatches(&users, 1000).Error)

	var client *redis.Client
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		client = redis.NewClient(&redis.Options{Addr: addr})
	} else {
		mr := must(miniredis.Run())
		defer mr.Close()
		client = redis.NewClient(&redis.Options{Addr: mr.Addr()})
	}
	defer client.Close()
	if err := client.Ping(ctx).Err(); err != nil {
		panic(fmt.Sprintf("redis ping: %v", err))
	}

	batches := makeBatches(ids, requests, batch)
	repo := repository.NewUserRepository(db)

	noCache := run(ctx, service.NewDirectory(repo, nil, nil, 0), batches, false)
	mustDo(client.FlushAll(ctx).Err())
	cold := run(ctx, service.NewDirectory(repo, nil, client, 10*time.Minute), batches, false)
	warm := run(ctx, service.NewDirectory(repo, nil, client, 10*time.Minute), batches, true)
	keys := must(client.DBSize(ctx).Result())

	fmt.Printf("\nDirectory lookups (USERS=%d REQUESTS=%d BATCH=%d)\n", userCount, requests, batch)
	report("No cache", noCache)
	report("Redis cold", cold)
	report("Redis warm", warm)
	fmt.Printf("cache keys=%d\n", keys)
}

func run(ctx context.Context, dir service.Directory, batches [][]string, warmup bool) []time.Duration {
	if warmup {
		for _, b := range batches {
			must(dir.LookupMany(ctx, b))
		}
	}
	out := make([]time.Duration, 0, len(batches))
	for _, b := range batches {
		start := time.Now()
		must(dir.LookupMany(ctx, b))
		out = append(out, time.Since(start))
	}
	return out
}

// makeBatches 生成偏向热点用户的批次，使后续批次与之前的重叠
func makeBatches(ids []string, n, size int) [][]string {
	rnd := rand.New(rand.NewSource(42))
	hot := len(ids) / 10
	if hot == 0 {
		hot = len(ids)
	}
	out := make([][]string, n)
	for i := range out {
		b := make([]string, size)
		for j := range b {
			if rnd.Float64() < 0.8 {
				b[j] = ids[rnd.Intn(hot)]
			} else {
				b[j] = ids[rnd.Intn(len(ids))]
			}
		}
		out[i] = b
	}
	return out
}

func report(name string, ds []time.Duration) {
	fmt.Printf("%-12s avg=%v p95=%v p99=%v\n", name, avg(ds), pct(ds, 0.95), pct(ds, 0.99))
}

func envInt(name string, def int) int {
	if s := strings.TrimSpace(os.Getenv(name)); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			return v
		}
	}
	return def
}

func avg(vs []time.Duration) time.Duration {
	if len(vs) == 0 {
		return 0
	}
	var sum time.Duration
	for _, v := range vs {
		sum += v
	}
	return sum / time.Duration(len(vs))
}

func pct(vs []time.Duration, p float64) time.Duration {
	if len(vs) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), vs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	idx := int(math.Ceil(p*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func mustDo(err error) {
	if err != nil {
		panic(err)
	}
}
