package main

import (
	"bytes"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"
)

const (
	baseURL      = "http://127.0.0.1:18090"
	numWorkers   = 50
	testDuration = 10 * time.Second
	numSellers   = 40
	numBuyers    = 400
	centerLat    = -6.2
	centerLng    = 106.816666
	spreadDeg    = 0.03
)

var httpClient = &http.Client{
	Timeout: 5 * time.Second,
	Transport: &http.Transport{
		MaxIdleConns:        200,
		MaxIdleConnsPerHost: 200,
		IdleConnTimeout:     30 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   2 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	},
}

type result struct {
	endpoint string
	status   int
	latency  time.Duration
	err      bool
}

type stats struct {
	count     int64
	errors    int64
	latencies []time.Duration
}

func sellerID(i int) string { return fmt.Sprintf("seller-%d", i) }
func buyerID(i int) string  { return fmt.Sprintf("buyer-%d", i) }

func main() {
	fmt.Println("=== Bakso Tracker Load Test ===")
	fmt.Printf("Workers: %d | Duration: %s\n", numWorkers, testDuration)
	fmt.Printf("Sellers: %d | Buyers: %d\n\n", numSellers, numBuyers)

	// Wait for server
	fmt.Print("Waiting for server... ")
	for i := 0; i < 30; i++ {
		resp, err := httpClient.Get(baseURL + "/health")
		if err == nil {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			break
		}
		if i == 29 {
			fmt.Println("FAILED: server not responding")
			return
		}
		time.Sleep(200 * time.Millisecond)
	}
	fmt.Println("OK")

	// Phase 1: open every session
	fmt.Println("\n--- Phase 1: Logging in sellers and buyers (POST /session) ---")
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	failed := 0
	for i := 0; i < numSellers; i++ {
		if r := doLogin(rng, sellerID(i), "seller"); r.err {
			failed++
		}
	}
	for i := 0; i < numBuyers; i++ {
		if r := doLogin(rng, buyerID(i), "buyer"); r.err {
			failed++
		}
	}
	fmt.Printf("  %d sessions, %d failed\n", numSellers+numBuyers, failed)

	// Wait for presence to settle
	fmt.Println("\nWaiting 2s for presence sync...")
	time.Sleep(2 * time.Second)

	// Phase 2: movement plus map reads
	fmt.Println("\n--- Phase 2: Movement (60% POST /location, 40% GET /nearby) ---")
	runPhase(testDuration, func(rng *rand.Rand) result {
		if rng.Float64() < 0.60 {
			return doLocation(rng)
		}
		return doNearby(rng)
	})

	// Phase 3: ping traffic
	fmt.Println("\n--- Phase 3: Pings (20% POST /ping, 30% GET /notifications, 50% GET /nearby) ---")
	runPhase(testDuration, func(rng *rand.Rand) result {
		r := rng.Float64()
		switch {
		case r < 0.20:
			return doPing(rng)
		case r < 0.50:
			return doNotifications(rng)
		default:
			return doNearby(rng)
		}
	})
}

func runPhase(duration time.Duration, workFn func(rng *rand.Rand) result) {
	results := make(chan result, 10000)
	var wg sync.WaitGroup
	var totalOps atomic.Int64
	stop := make(chan struct{})

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for {
				select {
				case <-stop:
					return
				default:
					r := workFn(rng)
					totalOps.Add(1)
					results <- r
				}
			}
		}(rand.Int63() + int64(i))
	}

	allResults := make(map[string]*stats)
	done := make(chan struct{})
	go func() {
		for r := range results {
			s, ok := allResults[r.endpoint]
			if !ok {
				s = &stats{}
				allResults[r.endpoint] = s
			}
			s.count++
			if r.err {
				s.errors++
			}
			s.latencies = append(s.latencies, r.latency)
		}
		close(done)
	}()

	time.Sleep(duration)
	close(stop)
	wg.Wait()
	close(results)
	<-done

	printResults(allResults, duration)
}

func printResults(allResults map[string]*stats, duration time.Duration) {
	var totalOps int64
	var totalErrors int64

	endpoints := make([]string, 0, len(allResults))
	for ep := range allResults {
		endpoints = append(endpoints, ep)
	}
	sort.Strings(endpoints)

	fmt.Printf("\n  %-22s %8s %6s %10s %10s %10s %10s\n",
		"Endpoint", "Reqs", "Errs", "Avg", "P50", "P95", "P99")
	fmt.Println("  " + repeat("-", 88))

	for _, ep := range endpoints {
		s := allResults[ep]
		totalOps += s.count
		totalErrors += s.errors

		sort.Slice(s.latencies, func(i, j int) bool {
			return s.latencies[i] < s.latencies[j]
		})

		avg := avgDuration(s.latencies)
		p50 := percentile(s.latencies, 0.50)
		p95 := percentile(s.latencies, 0.95)
		p99 := percentile(s.latencies, 0.99)

		fmt.Printf("  %-22s %8d %6d %10s %10s %10s %10s\n",
			ep, s.count, s.errors, fmtDur(avg), fmtDur(p50), fmtDur(p95), fmtDur(p99))
	}

	rps := float64(totalOps) / duration.Seconds()
	fmt.Println("  " + repeat("-", 88))
	fmt.Printf("  Total: %d reqs | Errors: %d (%.1f%%) | RPS: %.0f\n",
		totalOps, totalErrors, float64(totalErrors)/float64(totalOps)*100, rps)
}

func jitter(rng *rand.Rand) (float64, float64) {
	return centerLat + (rng.Float64()-0.5)*spreadDeg, centerLng + (rng.Float64()-0.5)*spreadDeg
}

func post(endpoint, path string, body interface{}, ok ...int) result {
	data, _ := json.Marshal(body)
	start := time.Now()
	resp, err := httpClient.Post(baseURL+path, "application/json", bytes.NewReader(data))
	lat := time.Since(start)
	if err != nil {
		return result{endpoint, 0, lat, true}
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return result{endpoint, resp.StatusCode, lat, !accepted(resp.StatusCode, ok)}
}

func get(endpoint, url string) result {
	start := time.Now()
	resp, err := httpClient.Get(url)
	lat := time.Since(start)
	if err != nil {
		return result{endpoint, 0, lat, true}
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return result{endpoint, resp.StatusCode, lat, resp.StatusCode != 200}
}

func accepted(status int, ok []int) bool {
	for _, s := range ok {
		if s == status {
			return true
		}
	}
	return false
}

func doLogin(rng *rand.Rand, id, role string) result {
	lat, lng := jitter(rng)
	return post("POST /session", "/session", map[string]interface{}{
		"id": id, "name": id, "role": role, "lat": lat, "lng": lng,
	}, http.StatusCreated)
}

func doLocation(rng *rand.Rand) result {
	id := buyerID(rng.Intn(numBuyers))
	if rng.Float64() < 0.3 {
		id = sellerID(rng.Intn(numSellers))
	}
	lat, lng := jitter(rng)
	return post("POST /location", "/location", map[string]interface{}{
		"id": id, "lat": lat, "lng": lng,
	}, http.StatusNoContent)
}

func doNearby(rng *rand.Rand) result {
	return get("GET /nearby", fmt.Sprintf("%s/nearby?id=%s", baseURL, buyerID(rng.Intn(numBuyers))))
}

// doPing counts rate limited and out-of-range pings as expected outcomes.
func doPing(rng *rand.Rand) result {
	return post("POST /ping", "/ping", map[string]interface{}{
		"id": buyerID(rng.Intn(numBuyers)), "seller_id": sellerID(rng.Intn(numSellers)),
	}, http.StatusAccepted, http.StatusTooManyRequests, http.StatusConflict)
}

func doNotifications(rng *rand.Rand) result {
	return get("GET /notifications", fmt.Sprintf("%s/notifications?id=%s", baseURL, sellerID(rng.Intn(numSellers))))
}

func avgDuration(d []time.Duration) time.Duration {
	if len(d) == 0 {
		return 0
	}
	var sum time.Duration
	for _, v := range d {
		sum += v
	}
	return sum / time.Duration(len(d))
}

func percentile(d []time.Duration, p float64) time.Duration {
	if len(d) == 0 {
		return 0
	}
	idx := int(float64(len(d)) * p)
	if idx >= len(d) {
		idx = len(d) - 1
	}
	return d[idx]
}

func fmtDur(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%dµs", d.Microseconds())
	}
	return fmt.Sprintf("%.1fms", float64(d.Microseconds())/1000.0)
}

func repeat(s string, n int) string {
	out := ""
	for i := 0; i < n; i++ {
		out += s
	}
	return out
}
