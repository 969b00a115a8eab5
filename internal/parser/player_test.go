package parser

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"tournament-bot/internal/models"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantNick string
		wantID   string
	}{
		{name: "space separated", input: "ShadowKiller 5123456789", wantNick: "ShadowKiller", wantID: "5123456789"},
		{name: "comma separated", input: "Pro Gamer, 5987654321", wantNick: "Pro Gamer", wantID: "5987654321"},
		{name: "newline separated", input: "ProGamer\n5789123456", wantNick: "ProGamer", wantID: "5789123456"},
		{name: "colon labeled", input: "Nickname: ProPlayer, ID: 5456789123", wantNick: "Nickname: ProPlayer, ID", wantID: "5456789123"},
		{name: "id first", input: "5123456789, Shadow", wantNick: "Shadow", wantID: "5123456789"},
		{name: "id embedded in prose", input: "my id is 5123456789 thanks", wantNick: "my id is  thanks", wantID: "5123456789"},
		{name: "glued to nickname", input: "Sniper5123456789", wantNick: "Sniper", wantID: "5123456789"},
		{name: "bare label", input: "ID:5123456789", wantNick: "ID", wantID: "5123456789"},
		{name: "digits in nickname", input: "Player77 5000000001", wantNick: "Player77", wantID: "5000000001"},
		{name: "wrong leading digit falls back to last token", input: "Shadow 4123456789", wantNick: "Shadow", wantID: "4123456789"},
		{name: "too long is not an id", input: "Shadow 512345678901", wantNick: "Shadow", wantID: "512345678901"},
		{name: "single word", input: "Shadow", wantNick: "Shadow", wantID: models.NotProvided},
		{name: "bare id", input: "5123456789", wantNick: "5123456789", wantID: models.NotProvided},
		{name: "empty", input: "   ", wantNick: "", wantID: models.NotProvided},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.input)
			assert.Equal(t, tt.wantNick, got.Nickname)
			assert.Equal(t, tt.wantID, got.PlayerID)
		})
	}
}

func TestParse_RecoversIDInEveryShape(t *testing.T) {
	shapes := []string{
		"Nick %s",
		"Nick, %s",
		"Nick: %s",
		"Nick\n%s",
		"Nickname: Nick, ID: %s",
		"hello, I'm Nick and my id is %s ok",
		"%s Nick",
	}
	ids := []string{"5000000000", "5123456789", "5999999999", "5012345678"}

	for _, id := range ids {
		for _, shape := range shapes {
			input := fmt.Sprintf(shape, id)
			got := Parse(input)
			assert.Equal(t, id, got.PlayerID, "input %q", input)
			assert.True(t, ValidPlayerID(got.PlayerID))
			assert.NotEmpty(t, got.Nickname, "input %q", input)
		}
	}
}

func TestValidPlayerID(t *testing.T) {
	assert.True(t, ValidPlayerID("5123456789"))
	for _, id := range []string{"", "512345678", "51234567890", "4123456789", "51234x6789", models.NotProvided} {
		assert.False(t, ValidPlayerID(id), id)
	}
}
