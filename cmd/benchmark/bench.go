package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"time"

	vegeta "github.com/tsenart/vegeta/v12/lib"

	"github.com/aperture-ai/gateway/internal/configstore"
	"github.com/aperture-ai/gateway/internal/configstore/sqlite"
)

// Load harness: boots a mock groq upstream, seeds a throwaway sqlite config
// store, starts the gateway against both, and drives it with vegeta.

const (
	mockPort = 9091
	appPort  = 8081
	benchDB  = "bench.db"
)

var benchConfig = fmt.Sprintf(`server:
  port: "%d"
  env: development
  base_path: /v1
  api_keys: ["bench-key-12345"]
rate_limit:
  requests_per_second: 100000
  burst: 200000
config_store:
  kind: sqlite
  path: %s
providers:
  groq:
    api_key_secret: BENCH_GROQ_KEY
    base_url: http://localhost:%d/openai/v1
`, appPort, benchDB, mockPort)

var (
	streamChunks = []string{
		`{"choices":[{"delta":{"role":"assistant","content":"Bench"}}]}`,
		`{"choices":[{"delta":{"content":"mark"}}]}`,
		`{"choices":[{"delta":{"content":" response"}}]}`,
		`{"choices":[{"delta":{},"finish_reason":"stop"}],"usage":{"prompt_tokens":4,"completion_tokens":3,"total_tokens":7}}`,
	}
	unaryResp = []byte(`{"choices":[{"message":{"role":"assistant","content":"Hello"},"finish_reason":"stop"}],"usage":{"prompt_tokens":4,"completion_tokens":1,"total_tokens":5}}`)
)

func main() {
	duration := flag.Duration("duration", 10*time.Second, "Duration of the test")
	rate := flag.Int("rate", 50, "Requests per second")
	stream := flag.Bool("stream", false, "Use streaming requests")
	chaos := flag.Bool("chaos", false, "Simulate random client disconnections")
	flag.Parse()

	go startMockServer()

	if err := seedBenchStore(); err != nil {
		log.Fatalf("Failed to seed bench store: %v", err)
	}
	defer os.Remove(benchDB)

	fmt.Println("Building application...")
	buildCmd := exec.Command("go", "build", "-o", "bin/server", "./cmd/server")
	buildCmd.Stdout = os.Stdout
	buildCmd.Stderr = os.Stderr
	if err := buildCmd.Run(); err != nil {
		log.Fatalf("Failed to build app: %v", err)
	}

	configFile := "bench_config.yaml"
	if err := os.WriteFile(configFile, []byte(benchConfig), 0644); err != nil {
		log.Fatalf("Failed to write config: %v", err)
	}
	defer os.Remove(configFile)

	fmt.Println("Starting application...")
	app := exec.Command("./bin/server")
	app.Env = append(os.Environ(),
		"BENCH_GROQ_KEY=gsk-bench",
		"LOG_LEVEL=error",
	)

	logFile, _ := os.Create("bench_server.log")
	defer logFile.Close()
	app.Stdout = logFile
	app.Stderr = logFile

	if err := app.Start(); err != nil {
		log.Fatalf("Failed to start app: %v", err)
	}
	defer func() {
		if app.Process != nil {
			_ = app.Process.Kill()
		}
	}()

	waitForApp(fmt.Sprintf("http://localhost:%d/health", appPort))

	done := make(chan struct{})

	mode := "Unary"
	if *stream {
		mode = "Streaming"
	}
	fmt.Printf("Running %s benchmark: %s duration, %d req/s\n", mode, *duration, *rate)

	body := `{"model": "bench-agent/main/fast", "messages": [{"role": "user", "content": "Hello"}]}`
	if *stream {
		body = `{"model": "bench-agent/main/fast", "stream": true, "messages": [{"role": "user", "content": "Hello"}]}`
	}
	targetURL := fmt.Sprintf("http://localhost:%d/v1/chat/completions", appPort)

	targeter := func(t *vegeta.Target) error {
		t.Method = "POST"
		t.URL = targetURL
		t.Body = []byte(body)
		t.Header = http.Header{
			"Content-Type":  []string{"application/json"},
			"Authorization": []string{"Bearer bench-key-12345"},
		}
		return nil
	}

	if *chaos {
		fmt.Println("CHAOS MODE ENABLED: random client disconnects alongside the attack")
		go startChaosMonkey(targetURL, 10, done)
	}

	attacker := vegeta.NewAttacker(vegeta.KeepAlive(true))
	var metrics vegeta.Metrics
	for res := range attacker.Attack(targeter, vegeta.Rate{Freq: *rate, Per: time.Second}, *duration, "Benchmark") {
		metrics.Add(res)
	}
	metrics.Close()
	close(done)

	fmt.Println("--------------------------------------------------")
	fmt.Println("99th percentile: ", metrics.Latencies.P99)
	fmt.Println("Mean:            ", metrics.Latencies.Mean)
	fmt.Println("Max:             ", metrics.Latencies.Max)
	fmt.Printf("Success:         %.2f%%\n", metrics.Success*100)
	fmt.Printf("Throughput:      %.2f req/s\n", metrics.Throughput)
	fmt.Println("--------------------------------------------------")

	if len(metrics.Errors) > 0 {
		fmt.Println("Error Set (first 5 unique):")
		seen := make(map[string]bool)
		for _, msg := range metrics.Errors {
			if seen[msg] || len(seen) >= 5 {
				continue
			}
			fmt.Println(msg)
			seen[msg] = true
		}
	}
}

func seedBenchStore() error {
	os.Remove(benchDB)
	store, err := sqlite.Open(benchDB)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return store.UpsertModel(ctx, "bench-agent", "main", configstore.ModelConfig{
		Alias: "fast",
		Type:  "openai/gpt-oss-120b",
	})
}

func startMockServer() {
	mux := http.NewServeMux()

	mux.HandleFunc("/openai/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&req)

		if val, ok := req["stream"].(bool); ok && val {
			w.Header().Set("Content-Type", "text/event-stream")
			flusher, _ := w.(http.Flusher)

			for _, chunk := range streamChunks {
				time.Sleep(20 * time.Millisecond)
				fmt.Fprintf(w, "data: %s\n\n", chunk)
				flusher.Flush()
			}
			fmt.Fprint(w, "data: [DONE]\n\n")
			flusher.Flush()
			return
		}

		time.Sleep(10 * time.Millisecond)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(unaryResp)
	})

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	_ = http.ListenAndServe(fmt.Sprintf(":%d", mockPort), mux)
}

func startChaosMonkey(url string, concurrency int, done chan struct{}) {
	payload := `{"model": "bench-agent/main/fast", "stream": true, "messages": [{"role": "user", "content": "Chaos"}]}`

	for i := 0; i < concurrency; i++ {
		go func() {
			client := &http.Client{}
			for {
				select {
				case <-done:
					return
				default:
					// Disconnect somewhere between 1ms and 200ms in
					timeout := time.Duration(rand.Intn(200)+1) * time.Millisecond
					ctx, cancel := context.WithTimeout(context.Background(), timeout)

					req, _ := http.NewRequestWithContext(ctx, "POST", url, strings.NewReader(payload))
					req.Header.Set("Content-Type", "application/json")
					req.Header.Set("Authorization", "Bearer bench-key-12345")

					resp, err := client.Do(req)
					if err == nil {
						_ = resp.Body.Close()
					}
					cancel()

					time.Sleep(time.Duration(rand.Intn(50)) * time.Millisecond)
				}
			}
		}()
	}
}

func waitForApp(url string) {
	for i := 0; i < 50; i++ {
		resp, err := http.Get(url)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				fmt.Println("Application is ready.")
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	log.Fatal("Application failed to become ready")
}
