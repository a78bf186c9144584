package partyinfo

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"txmanager/internal/model"
)

func TestStoreIsolatesSnapshots(t *testing.T) {
	s := NewStore("http://self:9000")

	got := s.Get()
	got.Parties[model.Party{URL: "http://a:8080"}] = struct{}{}
	assert.Empty(t, s.Get().Parties)

	info := model.NewPartyInfo("http://self:9000", nil, []model.Party{{URL: "http://b:8080"}})
	s.Replace(info)
	info.Parties[model.Party{URL: "http://c:8080"}] = struct{}{}

	assert.Len(t, s.Get().Parties, 1)
	assert.Equal(t, "http://self:9000", s.Get().URL)
}
