package services_test

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/civic-fix/api-go/models"
	"github.com/civic-fix/api-go/services"
)

func TestAllocateFormat(t *testing.T) {
	tests := []struct {
		kind    models.ReportType
		pattern string
	}{
		{models.ReportTypeRepair, `^RP\d{8}$`},
		{models.ReportTypeRequest, `^RQ\d{8}$`},
	}

	alloc := services.NewTicketAllocator(nil)
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			id, err := alloc.Allocate(context.Background(), tt.kind)
			if err != nil {
				t.Fatalf("Allocate: %v", err)
			}
			if !regexp.MustCompile(tt.pattern).MatchString(id) {
				t.Errorf("ticket %q does not match %s", id, tt.pattern)
			}
		})
	}
}

func TestClockSequenceNeverRepeatsOnFrozenClock(t *testing.T) {
	frozen := time.UnixMilli(1_700_000_000_123)
	seq := services.NewClockSequence(func() time.Time { return frozen })

	var last int64
	for i := 0; i < 1000; i++ {
		n, err := seq.Next(context.Background(), "RP")
		if err != nil {
			t.Fatal(err)
		}
		if n <= last {
			t.Fatalf("value %d not greater than previous %d", n, last)
		}
		last = n
	}
}

func TestClockSequenceConcurrentUnique(t *testing.T) {
	alloc := services.NewTicketAllocator(services.NewClockSequence(nil))

	const n = 200
	ids := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := alloc.Allocate(context.Background(), models.ReportTypeRepair)
			if err != nil {
				t.Error(err)
				return
			}
			ids <- id
		}()
	}
	wg.Wait()
	close(ids)

	seen := map[string]bool{}
	for id := range ids {
		if seen[id] {
			t.Fatalf("duplicate ticket %s", id)
		}
		seen[id] = true
	}
}

type brokenSequence struct{}

func (brokenSequence) Next(context.Context, string) (int64, error) {
	return 0, errors.New("connection refused")
}

func TestAllocateSequenceFailure(t *testing.T) {
	_, err := services.NewTicketAllocator(brokenSequence{}).Allocate(context.Background(), models.ReportTypeRepair)
	var dep *services.DependencyError
	if !errors.As(err, &dep) {
		t.Fatalf("err = %v, want DependencyError", err)
	}
}
