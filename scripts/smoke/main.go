package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"
)

type target struct {
	Method   string `json:"method"`
	Path     string `json:"path"`
	Critical bool   `json:"critical"`
}

type config struct {
	Targets []target `json:"targets"`
}

type checkResult struct {
	Target   target
	Status   int
	Healthy  bool
	Error    error
	Duration time.Duration
}

func main() {
	var (
		base        string
		targetsPath string
		timeout     time.Duration
	)

	flag.StringVar(&base, "base", "http://localhost:8080", "API base URL")
	flag.StringVar(&targetsPath, "targets", "", "Optional JSON targets file overriding the built-in set")
	flag.DurationVar(&timeout, "timeout", 5*time.Second, "HTTP client timeout")
	flag.Parse()

	targets := defaultTargets()
	if targetsPath != "" {
		loaded, err := loadTargets(targetsPath)
		if err != nil {
			log.Fatalf("failed to load targets: %v", err)
		}
		targets = loaded
	}

	client := &http.Client{Timeout: timeout}
	var (
		results  []checkResult
		breaking int
		degraded int
	)

	for _, t := range targets {
		res := checkTarget(client, base, t)
		if !res.Healthy {
			if t.Critical {
				breaking++
			} else {
				degraded++
			}
		}
		results = append(results, res)
	}

	printReport(results)

	fmt.Printf("Critical failures: %d, Degraded: %d\n", breaking, degraded)
	if breaking > 0 {
		os.Exit(1)
	}
}

func defaultTargets() []target {
	return []target{
		{Method: http.MethodGet, Path: "/health", Critical: true},
		{Method: http.MethodGet, Path: "/ready", Critical: true},
		{Method: http.MethodGet, Path: "/metrics", Critical: false},
		{Method: http.MethodGet, Path: "/docs/index.html", Critical: false},
	}
}

func loadTargets(path string) ([]target, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if len(cfg.Targets) == 0 {
		return nil, fmt.Errorf("no targets defined in %s", path)
	}
	return cfg.Targets, nil
}

func checkTarget(client *http.Client, base string, tgt target) checkResult {
	res := checkResult{Target: tgt}
	resp, dur, err := performRequest(client, base, tgt)
	res.Duration = dur
	if err != nil {
		res.Error = fmt.Errorf("request failed: %w", err)
		return res
	}
	defer resp.Body.Close()

	res.Status = resp.StatusCode
	res.Healthy = resp.StatusCode >= 200 && resp.StatusCode < 300
	return res
}

func performRequest(client *http.Client, base string, tgt target) (*http.Response, time.Duration, error) {
	if client == nil {
		return nil, 0, errors.New("nil client")
	}
	method := strings.ToUpper(strings.TrimSpace(tgt.Method))
	if method == "" {
		method = http.MethodGet
	}
	path := tgt.Path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	url := strings.TrimRight(base, "/") + path

	req, err := http.NewRequest(method, url, nil)
	if err != nil {
		return nil, 0, err
	}
	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	return resp, time.Since(start), nil
}

func printReport(results []checkResult) {
	fmt.Println("Smoke Check Report")
	fmt.Println("==================")
	for _, res := range results {
		status := "OK"
		if res.Error != nil {
			status = "ERROR"
		} else if !res.Healthy {
			status = "FAIL"
		}
		fmt.Printf("[%s] %s %s\n", status, res.Target.Method, res.Target.Path)
		if res.Error != nil {
			fmt.Printf("  Error: %v (%s)\n", res.Error, res.Duration)
		} else {
			fmt.Printf("  Status: %d (%s) | Critical: %t\n", res.Status, res.Duration, res.Target.Critical)
		}
	}
}
