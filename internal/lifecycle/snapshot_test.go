package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/betbot/updown/internal/domain"
)

func TestSnapshotApplyAndDuplicateSuppression(t *testing.T) {
	s := NewQuoteSnapshot("btc-updown-15m-1765985400")

	changed, oldAsk, oldBid := s.Apply(domain.TokenTypeUp, domain.Price{Cents: 55}, domain.Price{Cents: 53})
	assert.True(t, changed)
	assert.True(t, oldAsk.IsZero())
	assert.True(t, oldBid.IsZero())

	// 完全相同的报价被抑制
	changed, _, _ = s.Apply(domain.TokenTypeUp, domain.Price{Cents: 55}, domain.Price{Cents: 53})
	assert.False(t, changed)

	// 仅 bid 变化也算变化
	changed, oldAsk, oldBid = s.Apply(domain.TokenTypeUp, domain.Price{Cents: 55}, domain.Price{Cents: 54})
	assert.True(t, changed)
	assert.Equal(t, 55, oldAsk.Cents)
	assert.Equal(t, 53, oldBid.Cents)

	ask, bid, ok := s.Get(domain.TokenTypeUp)
	assert.True(t, ok)
	assert.Equal(t, 55, ask.Cents)
	assert.Equal(t, 54, bid.Cents)

	_, _, ok = s.Get(domain.TokenTypeDown)
	assert.False(t, ok)
}

func TestSnapshotFinalAndWinner(t *testing.T) {
	s := NewQuoteSnapshot("btc-updown-15m-1765985400")
	s.Apply(domain.TokenTypeUp, domain.Price{Cents: 40}, domain.Price{})
	s.Apply(domain.TokenTypeDown, domain.Price{Cents: 60}, domain.Price{})

	final := s.Final()
	assert.Equal(t, 40, final.Up.Cents)
	assert.Equal(t, 60, final.Down.Cents)
	assert.Equal(t, domain.TokenTypeDown, final.Winner())

	// 相等时 up 获胜
	s.Apply(domain.TokenTypeDown, domain.Price{Cents: 40}, domain.Price{})
	assert.Equal(t, domain.TokenTypeUp, s.Final().Winner())
}
