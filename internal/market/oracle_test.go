package market

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"solana-meme-radar/internal/solana"
)

func TestOracleClient_Price(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("ids"); got != "TestMint111" {
			t.Errorf("unexpected ids param %q", got)
		}
		fmt.Fprint(w, `{"data":{"TestMint111":{"id":"TestMint111","type":"derivedPrice","price":"0.00004231"}},"timeTaken":0.003}`)
	}))
	defer server.Close()

	client := NewOracleClient(server.URL)
	price, err := client.Price(context.Background(), "TestMint111")
	if err != nil {
		t.Fatalf("Price: %v", err)
	}
	if price != 0.00004231 {
		t.Errorf("expected 0.00004231, got %v", price)
	}
}

func TestOracleClient_UnknownMint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":{},"timeTaken":0.001}`)
	}))
	defer server.Close()

	client := NewOracleClient(server.URL)
	_, err := client.Price(context.Background(), "UnknownMint")
	if !errors.Is(err, ErrNoPrice) {
		t.Errorf("expected ErrNoPrice, got %v", err)
	}
}

func TestOracleClient_NullPriceEntry(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":{"DeadMint":null},"timeTaken":0.001}`)
	}))
	defer server.Close()

	client := NewOracleClient(server.URL)
	_, err := client.Price(context.Background(), "DeadMint")
	if !errors.Is(err, ErrNoPrice) {
		t.Errorf("expected ErrNoPrice, got %v", err)
	}
}

func TestOracleClient_MalformedPrice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":{"BadMint":{"id":"BadMint","price":"n/a"}}}`)
	}))
	defer server.Close()

	client := NewOracleClient(server.URL)
	if _, err := client.Price(context.Background(), "BadMint"); err == nil {
		t.Error("expected parse error")
	}
}

// countingPriceSource records calls so cache behavior is observable.
type countingPriceSource struct {
	price float64
	err   error
	calls int
	mints []string
}

func (s *countingPriceSource) Price(_ context.Context, mint string) (float64, error) {
	s.calls++
	s.mints = append(s.mints, mint)
	if s.err != nil {
		return 0, s.err
	}
	return s.price, nil
}

func TestSolPricer_CachesPrice(t *testing.T) {
	source := &countingPriceSource{price: 152.34}
	pricer := NewSolPricer(source, 0)

	for i := 0; i < 3; i++ {
		price, err := pricer.SolUsd(context.Background())
		if err != nil {
			t.Fatalf("SolUsd: %v", err)
		}
		if price != 152.34 {
			t.Errorf("expected 152.34, got %v", price)
		}
	}

	if source.calls != 1 {
		t.Errorf("expected 1 oracle call, got %d", source.calls)
	}
	if source.mints[0] != solana.WSOLMint {
		t.Errorf("expected WSOL mint lookup, got %s", source.mints[0])
	}
}

func TestSolPricer_ErrorNotCached(t *testing.T) {
	source := &countingPriceSource{err: errors.New("oracle down")}
	pricer := NewSolPricer(source, 0)

	if _, err := pricer.SolUsd(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if _, err := pricer.SolUsd(context.Background()); err == nil {
		t.Fatal("expected error")
	}

	if source.calls != 2 {
		t.Errorf("failures must not be cached, got %d calls", source.calls)
	}
}
