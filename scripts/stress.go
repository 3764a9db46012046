//go:build ignore
// +build ignore

// Manual concurrency stress test for the loan-issue endpoint.
//
// Usage:
//
//	go run ./scripts/stress.go <copy_id> <member1_id> [member2_id ...]
//
// Or with environment variables:
//
//	COPY_ID=<uuid> MEMBER_IDS=<uuid1>,<uuid2>,... go run ./scripts/stress.go
//
// What it does:
//  1. Fires N goroutines (one per member) all attempting to issue a loan on
//     the same copy simultaneously.
//  2. Prints how many got the loan vs. a 409 conflict.
//
// Expected outcome: exactly one loan issued, every other request rejected
// with 409. The copy row lock plus the uniq_active_loan index close the
// double-issue race.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"
)

const defaultServerAddr = "http://localhost:8080"

type issueResult struct {
	MemberID   string
	StatusCode int
	Err        error
}

func main() {
	serverAddr := os.Getenv("SERVER_ADDR")
	if serverAddr == "" {
		serverAddr = defaultServerAddr
	}

	copyID := os.Getenv("COPY_ID")
	var memberIDs []string
	if raw := os.Getenv("MEMBER_IDS"); raw != "" {
		memberIDs = strings.Split(raw, ",")
	}

	args := os.Args[1:]
	if len(args) >= 1 {
		copyID = args[0]
	}
	if len(args) >= 2 {
		memberIDs = args[1:]
	}

	if copyID == "" || len(memberIDs) == 0 {
		log.Fatal("Usage: COPY_ID=<uuid> MEMBER_IDS=<u1,u2,...> go run ./scripts/stress.go\n" +
			"  or: go run ./scripts/stress.go <copy_id> <member1_id> [member2_id ...]")
	}

	fmt.Printf("=== Loan Issue Stress Test ===\n")
	fmt.Printf("Server  : %s\n", serverAddr)
	fmt.Printf("Copy    : %s\n", copyID)
	fmt.Printf("Members : %d\n\n", len(memberIDs))

	results := make([]issueResult, len(memberIDs))
	var wg sync.WaitGroup
	start := make(chan struct{})

	for i, id := range memberIDs {
		wg.Add(1)
		go func(idx int, memberID string) {
			defer wg.Done()
			<-start
			results[idx] = attemptIssue(serverAddr, copyID, strings.TrimSpace(memberID))
		}(i, id)
	}

	fmt.Println("Firing all requests simultaneously...")
	close(start)
	wg.Wait()

	var issued, conflicts, failures int
	for _, r := range results {
		switch {
		case r.Err != nil:
			failures++
			fmt.Printf("  [ERR ] member=%-38s err=%v\n", r.MemberID, r.Err)
		case r.StatusCode == http.StatusCreated:
			issued++
			fmt.Printf("  [LOAN] member=%-38s status=%d\n", r.MemberID, r.StatusCode)
		case r.StatusCode == http.StatusConflict:
			conflicts++
			fmt.Printf("  [CONF] member=%-38s status=%d\n", r.MemberID, r.StatusCode)
		default:
			failures++
			fmt.Printf("  [FAIL] member=%-38s status=%d unexpected response\n", r.MemberID, r.StatusCode)
		}
	}

	fmt.Printf("\n--- Summary ---\n")
	fmt.Printf("Issued    : %d\n", issued)
	fmt.Printf("Conflicts : %d\n", conflicts)
	fmt.Printf("Failures  : %d\n", failures)

	if issued != 1 {
		fmt.Printf("\n[WARNING] expected exactly 1 issued loan, got %d\n", issued)
		os.Exit(1)
	}
}

func attemptIssue(serverAddr, copyID, memberID string) issueResult {
	url := fmt.Sprintf("%s/loans", serverAddr)
	payload, _ := json.Marshal(map[string]string{
		"copy_id":   copyID,
		"member_id": memberID,
	})

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Post(url, "application/json", bytes.NewReader(payload))
	if err != nil {
		return issueResult{MemberID: memberID, Err: err}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	return issueResult{MemberID: memberID, StatusCode: resp.StatusCode}
}
