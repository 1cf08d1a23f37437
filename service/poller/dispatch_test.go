package poller

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brojonat/solwatch/service/classify"
	"github.com/brojonat/solwatch/service/events"
	"github.com/brojonat/solwatch/service/notify"
	"github.com/brojonat/solwatch/service/price"
)

// fakeNotifier records sends and can be configured to fail.
type fakeNotifier struct {
	mu    sync.Mutex
	sends []sentMessage
	err   error
}

type sentMessage struct {
	mediaRef string
	caption  string
	kind     notify.MediaKind
}

func (n *fakeNotifier) SendMedia(ctx context.Context, mediaRef, caption string, kind notify.MediaKind) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sends = append(n.sends, sentMessage{mediaRef: mediaRef, caption: caption, kind: kind})
	return nil
}

func (n *fakeNotifier) SendText(ctx context.Context, text string) error {
	return n.SendMedia(ctx, "", text, notify.MediaPhoto)
}

func (n *fakeNotifier) captions() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.sends))
	for i, s := range n.sends {
		out[i] = s.caption
	}
	return out
}

// priceServer serves the Jupiter price response shape for a fixed set
// of ids.
func priceServer(t *testing.T, prices map[string]float64) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Query().Get("ids")
		p, ok := prices[id]
		if !ok {
			http.NotFound(w, r)
			return
		}
		fmt.Fprintf(w, `{"data":{"%s":{"price":%g}}}`, id, p)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestDispatcher(t *testing.T, opts DispatcherOptions, prices map[string]float64, notifier notify.Notifier, filter *notify.Filter, publisher events.Publisher) *EventDispatcher {
	t.Helper()
	pc := price.NewClient(nil, testLogger())
	pc.SetBaseURL(priceServer(t, prices).URL)
	return NewEventDispatcher(opts, pc, notifier, filter, publisher, nil, testLogger())
}

const watchedMint = "WatchedMint11111111111111111111111111111111"

func TestDispatchFeeIncomeNotifiesWithUSDValue(t *testing.T) {
	notifier := &fakeNotifier{}
	publisher := events.NewMockPublisher()
	d := newTestDispatcher(t,
		DispatcherOptions{FeeMediaRef: "https://example.com/fee.gif"},
		map[string]float64{"MintA": 2.0},
		notifier, nil, publisher,
	)

	rec := feeRecord("SIG1")
	rec.FirstSigner = "Payer1111111111111111111111111111111111111"
	ev := classify.Event{Kind: classify.KindFeeIncome, Mint: "MintA", Amount: 1.5}
	d.Dispatch(context.Background(), testWallet, testWallet, rec, ev)

	require.Len(t, notifier.sends, 1)
	assert.Equal(t, "https://example.com/fee.gif", notifier.sends[0].mediaRef)
	assert.Contains(t, notifier.sends[0].caption, "Fees collected!")
	assert.Contains(t, notifier.sends[0].caption, "Amount: 1.5 MintA")
	assert.Contains(t, notifier.sends[0].caption, "(~$3.00)")
	assert.Contains(t, notifier.sends[0].caption, "Collected from: Payer1111111111111111111111111111111111111")

	published := publisher.Events()
	require.Len(t, published, 1)
	assert.Equal(t, "SIG1", published[0].Signature)
	assert.Equal(t, "fee_income", published[0].Kind)
	require.NotNil(t, published[0].USDValue)
	assert.InDelta(t, 3.0, *published[0].USDValue, 1e-9)
}

func TestDispatchFeeIncomeWithoutPriceOmitsUSD(t *testing.T) {
	notifier := &fakeNotifier{}
	d := newTestDispatcher(t, DispatcherOptions{}, nil, notifier, nil, nil)

	ev := classify.Event{Kind: classify.KindFeeIncome, Mint: "MintA", Amount: 1.5}
	d.Dispatch(context.Background(), testWallet, testWallet, feeRecord("SIG1"), ev)

	require.Len(t, notifier.sends, 1)
	assert.NotContains(t, notifier.sends[0].caption, "$")
}

func TestDispatchBurnPrefersConfiguredSymbolPrice(t *testing.T) {
	notifier := &fakeNotifier{}
	d := newTestDispatcher(t,
		DispatcherOptions{WatchedMint: watchedMint, WatchedTokenSymbol: "FOO"},
		map[string]float64{"FOO": 0.5},
		notifier, nil, nil,
	)

	ev := classify.Event{Kind: classify.KindBurn, Mint: watchedMint, Amount: 100}
	d.Dispatch(context.Background(), testWallet, testWallet, feeRecord("SIG2"), ev)

	require.Len(t, notifier.sends, 1)
	assert.Contains(t, notifier.sends[0].caption, "Token burn!")
	assert.Contains(t, notifier.sends[0].caption, "Amount burned: 100 FOO")
	assert.Contains(t, notifier.sends[0].caption, "(~$50.00)")
}

func TestDispatchTransferLogsWithoutNotification(t *testing.T) {
	notifier := &fakeNotifier{}
	publisher := events.NewMockPublisher()
	d := newTestDispatcher(t, DispatcherOptions{}, nil, notifier, nil, publisher)

	ev := classify.Event{
		Kind:        classify.KindTransfer,
		PrimaryOut:  []classify.Delta{{Owner: testWallet, Mint: "MintA", Amount: -10}},
		SecondaryIn: []classify.Delta{{Owner: testSecondary, Mint: "MintA", Amount: 10}},
	}
	d.Dispatch(context.Background(), testWallet, testWallet, feeRecord("SIG3"), ev)

	assert.Empty(t, notifier.sends)
	require.Len(t, publisher.Events(), 1)
	assert.Equal(t, "transfer", publisher.Events()[0].Kind)
	assert.Len(t, publisher.Events()[0].PrimaryOut, 1)
}

func TestFilterBlocksNotificationButNotPublish(t *testing.T) {
	filter, err := notify.NewFilter(`.amount > 100`)
	require.NoError(t, err)

	notifier := &fakeNotifier{}
	publisher := events.NewMockPublisher()
	d := newTestDispatcher(t, DispatcherOptions{}, nil, notifier, filter, publisher)

	small := classify.Event{Kind: classify.KindFeeIncome, Mint: "MintA", Amount: 5}
	d.Dispatch(context.Background(), testWallet, testWallet, feeRecord("SIG4"), small)
	assert.Empty(t, notifier.sends)
	assert.Len(t, publisher.Events(), 1)

	big := classify.Event{Kind: classify.KindFeeIncome, Mint: "MintA", Amount: 500}
	d.Dispatch(context.Background(), testWallet, testWallet, feeRecord("SIG5"), big)
	assert.Len(t, notifier.sends, 1)
	assert.Len(t, publisher.Events(), 2)
}

func TestNotifierFailureDoesNotBlockPublish(t *testing.T) {
	notifier := &fakeNotifier{err: errors.New("telegram down")}
	publisher := events.NewMockPublisher()
	d := newTestDispatcher(t, DispatcherOptions{}, nil, notifier, nil, publisher)

	ev := classify.Event{Kind: classify.KindFeeIncome, Mint: "MintA", Amount: 1}
	d.Dispatch(context.Background(), testWallet, testWallet, feeRecord("SIG6"), ev)

	assert.Len(t, publisher.Events(), 1)
}

func TestPublisherFailureIsNonFatal(t *testing.T) {
	notifier := &fakeNotifier{}
	publisher := events.NewMockPublisher()
	publisher.Err = errors.New("nats down")
	d := newTestDispatcher(t, DispatcherOptions{}, nil, notifier, nil, publisher)

	ev := classify.Event{Kind: classify.KindFeeIncome, Mint: "MintA", Amount: 1}
	d.Dispatch(context.Background(), testWallet, testWallet, feeRecord("SIG7"), ev)

	// The notification still went out; only the publish failed.
	assert.Len(t, notifier.sends, 1)
	assert.Empty(t, publisher.Events())
}

func TestDisplaySymbol(t *testing.T) {
	d := NewEventDispatcher(
		DispatcherOptions{WatchedMint: watchedMint, WatchedTokenSymbol: "FOO"},
		price.NewClient(nil, testLogger()), &fakeNotifier{}, nil, nil, nil, testLogger(),
	)

	assert.Equal(t, "SOL", d.displaySymbol(classify.NativeMint))
	assert.Equal(t, "USDC", d.displaySymbol("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"))
	assert.Equal(t, "FOO", d.displaySymbol(watchedMint))
	assert.Equal(t, "SomeMint", d.displaySymbol("SomeMint"))
}

func TestFormatAmount(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{1.5, "1.5"},
		{100, "100"},
		{0.000000001, "0.000000001"},
		{0.5000000001, "0.5"},
		{0, "0"},
		{-2.25, "-2.25"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, formatAmount(tc.in), "formatAmount(%v)", tc.in)
	}
}
