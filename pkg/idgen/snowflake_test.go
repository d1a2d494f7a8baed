package idgen

import (
	"strings"
	"sync"
	"testing"
)

func TestNewSnowflakeRejectsOutOfRangeWorker(t *testing.T) {
	if _, err := NewSnowflake(-1); err == nil {
		t.Fatal("expected error for negative worker id")
	}
	if _, err := NewSnowflake(maxWorkerID + 1); err == nil {
		t.Fatal("expected error for worker id above range")
	}
}

func TestGenerateIsUniqueUnderConcurrency(t *testing.T) {
	g, err := NewSnowflake(7)
	if err != nil {
		t.Fatalf("new snowflake: %v", err)
	}

	const workers, perWorker = 8, 2000
	ids := make(chan int64, workers*perWorker)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				ids <- g.Generate()
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[int64]struct{}, workers*perWorker)
	for id := range ids {
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id %d", id)
		}
		seen[id] = struct{}{}
	}
}

func TestGenerateTransferNoPrefix(t *testing.T) {
	a, b := GenerateTransferNo(), GenerateTransferNo()
	if !strings.HasPrefix(a, "TRF") || !strings.HasPrefix(GeneratePaymentNo(), "PMT") {
		t.Fatalf("unexpected prefixes: %s", a)
	}
	if a == b {
		t.Fatalf("expected distinct transfer numbers, got %s twice", a)
	}
}
