package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/nhle/cfish-notify/internal/model"
)

// template renders one kind of simulated event.
type template func(f *gofakeit.Faker) model.Event

var templates = []template{
	func(f *gofakeit.Faker) model.Event {
		nft, amount := nftName(f), price(f)
		return model.Event{
			Type:    model.TypeBidReceived,
			Title:   "New Bid Received",
			Message: fmt.Sprintf("Someone bid %s SOL on your %q", amount, nft),
			Data:    data(map[string]string{"nftId": nftID(f), "bidAmount": amount}),
		}
	},
	func(f *gofakeit.Faker) model.Event {
		nft, amount := nftName(f), price(f)
		return model.Event{
			Type:    model.TypeNFTSold,
			Title:   "NFT Sold!",
			Message: fmt.Sprintf("Your %q has been sold for %s SOL", nft, amount),
			Data:    data(map[string]string{"nftId": nftID(f), "saleAmount": amount}),
		}
	},
	func(f *gofakeit.Faker) model.Event {
		user := f.Username()
		return model.Event{
			Type:    model.TypeFollow,
			Title:   "New Follower",
			Message: fmt.Sprintf("%s started following you", user),
			Data:    data(map[string]string{"userId": fmt.Sprint(f.Number(1, 10000))}),
		}
	},
	func(f *gofakeit.Faker) model.Event {
		nft, left := nftName(f), f.Number(5, 60)
		return model.Event{
			Type:    model.TypeAuctionEnding,
			Title:   "Auction Ending Soon",
			Message: fmt.Sprintf("Your auction for %q ends in %d minutes", nft, left),
			Data:    data(map[string]string{"nftId": nftID(f), "timeLeft": fmt.Sprintf("%dm", left)}),
		}
	},
	func(f *gofakeit.Faker) model.Event {
		nft, amount, cur := nftName(f), price(f), currency(f)
		return model.Event{
			Type:    model.TypeNFTPurchased,
			Title:   "NFT Purchased",
			Message: fmt.Sprintf("You successfully purchased %q for %s %s", nft, amount, cur),
			Data:    data(map[string]string{"nftId": nftID(f), "transactionHash": txHash(f)}),
		}
	},
	func(f *gofakeit.Faker) model.Event {
		nft, amount, cur := nftName(f), price(f), currency(f)
		return model.Event{
			Type:    model.TypeTrade,
			Title:   "Price Alert",
			Message: fmt.Sprintf("%q is now available for %s %s", nft, amount, cur),
			Data:    data(map[string]string{"nftId": nftID(f)}),
		}
	},
	func(f *gofakeit.Faker) model.Event {
		return model.Event{
			Type:    model.TypeSystem,
			Title:   "System Update",
			Message: "CFish platform has been updated with new features",
		}
	},
	func(f *gofakeit.Faker) model.Event {
		amount := fmt.Sprintf("%.2f", f.Float64Range(1, 100))
		return model.Event{
			Type:    model.TypeActivity,
			Title:   "Reward Earned",
			Message: fmt.Sprintf("You earned %s %s in staking rewards", amount, currency(f)),
			Data:    data(map[string]string{"transactionHash": txHash(f)}),
		}
	},
	func(f *gofakeit.Faker) model.Event {
		return model.Event{
			Type:    model.TypeComment,
			Title:   "New Comment",
			Message: fmt.Sprintf("%s commented on %q: %s", f.Username(), nftName(f), f.HipsterSentence(6)),
			Data:    data(map[string]string{"nftId": nftID(f)}),
		}
	},
}

func nftName(f *gofakeit.Faker) string {
	return fmt.Sprintf("%s %s #%d", f.AdjectiveDescriptive(), f.NounConcrete(), f.Number(1, 10000))
}

func nftID(f *gofakeit.Faker) string { return fmt.Sprint(f.Number(1, 10000)) }

func price(f *gofakeit.Faker) string { return fmt.Sprintf("%.2f", f.Float64Range(0.1, 50)) }

func currency(f *gofakeit.Faker) string { return f.RandomString([]string{"SOL", "CFISH"}) }

func txHash(f *gofakeit.Faker) string { return fmt.Sprintf("tx_%d", f.Number(10000000, 99999999)) }

func data(m map[string]string) json.RawMessage {
	b, _ := json.Marshal(m)
	return b
}

// SimulatedSource emits a random marketplace event with the given
// probability on every tick.
type SimulatedSource struct {
	interval    time.Duration
	probability float64
	faker       *gofakeit.Faker
}

// NewSimulatedSource creates a simulated feed. A zero seed seeds from
// the clock.
func NewSimulatedSource(interval time.Duration, probability float64, seed int64) *SimulatedSource {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &SimulatedSource{
		interval:    interval,
		probability: probability,
		faker:       gofakeit.New(seed),
	}
}

func (s *SimulatedSource) Name() string { return "simulated" }

// Next renders a random event. It is not safe for concurrent use.
func (s *SimulatedSource) Next() model.Event {
	return templates[s.faker.Number(0, len(templates)-1)](s.faker)
}

// Tick rolls the dice once and returns an event when it hits.
func (s *SimulatedSource) Tick() (model.Event, bool) {
	if s.faker.Float64() >= s.probability {
		return model.Event{}, false
	}
	return s.Next(), true
}

// Run ticks until ctx is cancelled.
func (s *SimulatedSource) Run(ctx context.Context, out chan<- Arrival) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			ev, ok := s.Tick()
			if !ok {
				continue
			}
			if !send(ctx, out, Arrival{Source: s.Name(), Event: ev}) {
				return nil
			}
		}
	}
}
