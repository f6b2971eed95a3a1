package normalizer

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kiro-assistant/internal/models"
)

func TestClean_Typography(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"phone with country code", "+47 40095900", "+47 400 95 900"},
		{"sentence spacing", "smerte.Rygg", "smerte. Rygg"},
		{"phone emoji", "Ring oss på 📞+4740095900 i dag.", "Ring oss på 📞 +47 400 95 900 i dag."},
		{"spaced phone emoji untouched", "Ring 📞 400 95 900 i dag.", "Ring 📞 400 95 900 i dag."},
		{"bold caps line with trailing space", "Legg på is.\n**VIKTIG INFORMASJON** \nBestill time.", "Legg på is.\nBestill time."},
		{"indented numbered caps line", "\n 1. PROFESJONELL HJELP\nBestill time.", "Bestill time."},
		{"caps line at end", "Bestill time.\nVIKTIG INFORMASJON", "Bestill time."},
		{
			"preposition and comma",
			"Hvil i15-20 minutter.Gjør øvelsene 2-3 ganger daglig,og hold deg i bevegelse.",
			"Hvil i 15-20 minutter. Gjør øvelsene 2-3 ganger daglig, og hold deg i bevegelse.",
		},
		{
			"headings and caps lines",
			"### ØYEBLIKKELIG HJELP\nLegg på varme.\n\n\n\nFORSTÅELSE AV PLAGEN\nRyggen er sterk.",
			"Legg på varme.\n\nRyggen er sterk.",
		},
		{"bold numbered section", "**1. **ØYEBLIKKELIG HJELP** Legg på is.", "Legg på is."},
		{"numbered caps line", "1. PROFESJONELL HJELP\nBestill time.", "Bestill time."},
		{
			"digits after sentence and decimals kept",
			"Det tar ca.3 uker.Bruk 1,5 liter vann og a,5",
			"Det tar ca. 3 uker. Bruk 1,5 liter vann og a, 5",
		},
		{"repeated and trailing spaces", "Hei   der  \nlinje", "Hei der\nlinje"},
		{"empty", "", ""},
		{"whitespace only", " \n\t ", ""},
		{"windows newlines", "Linje en\r\n\r\n\r\nLinje to", "Linje en\n\nLinje to"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Clean(tt.in))
		})
	}
}

func TestNormalize_Articles(t *testing.T) {
	raw := "Les mer her: [ARTICLE:rygg:Ryggsmerter:/behandlinger/rygg] og " +
		"[ARTICLE:kne:Knesmerter:https://kiropraktisksenter.no/plager/kne]"

	res := Normalize(raw)
	assert.Equal(t, "Les mer her: og", res.Text)
	assert.Equal(t, []models.ArticleReference{
		{ID: "rygg", Title: "Ryggsmerter", URL: "/behandlinger/rygg"},
		{ID: "kne", Title: "Knesmerter", URL: "https://kiropraktisksenter.no/plager/kne"},
	}, res.Articles)
}

func TestNormalize_NoArticlesIsEmptySlice(t *testing.T) {
	res := Normalize("Ingen lenker her.")
	require.NotNil(t, res.Articles)
	assert.Empty(t, res.Articles)
}

func TestNormalize_MarkerRoundTrip(t *testing.T) {
	var b strings.Builder
	var want []models.ArticleReference
	ids := []string{"rygg", "nakke", "skulder", "kne", "hodepine"}
	for i, id := range ids {
		b.WriteString("Avsnitt om " + id + ". ")
		ref := models.ArticleReference{ID: id, Title: strings.ToUpper(id[:1]) + id[1:], URL: "/behandlinger/" + id}
		b.WriteString("[ARTICLE:" + ref.ID + ":" + ref.Title + ":" + ref.URL + "]")
		if i%2 == 0 {
			b.WriteString("\n\n")
		}
		want = append(want, ref)
	}

	res := Normalize(b.String())
	assert.Equal(t, want, res.Articles)
	assert.NotContains(t, res.Text, "[ARTICLE:")
}

func TestNormalize_SplicedMarker(t *testing.T) {
	res := Normalize("[ARTI[ARTICLE:a:A:/a]CLE:b:B:/b]")
	assert.Len(t, res.Articles, 2)
	assert.Equal(t, "a", res.Articles[0].ID)
	assert.Equal(t, "b", res.Articles[1].ID)
	assert.Empty(t, res.Text)
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		"+4740095900",
		"smerte.Rygg",
		"### Overskrift\n**2. **PROFESJONELL HJELP** Ring 📞+4740095900,eller book.\n\n\n\nVIKTIG INFORMASJON HER\nslutt",
		"vann,,x og 1,5 og i3 dager.Deretter 12345678",
		"Hei   der  \n\n\n\n  linje  ",
		"[ARTICLE:rygg:Ryggsmerter:/behandlinger/rygg] tekst.Mer",
		"Legg på is.\n**VIKTIG INFORMASJON** \nBestill time.",
		"\n 1. PROFESJONELL HJELP\nBestill time.",
		"tekst 2.ABCDEFGHIJK\n2.ABCDEFGHIJK\nslutt",
		"Ring 📞 400 95 900 i dag.",
	}
	for _, in := range inputs {
		once := Normalize(in)
		twice := Normalize(once.Text)
		assert.Equal(t, once.Text, twice.Text, in)
		assert.Empty(t, twice.Articles, in)
	}
}

func TestClean_IdempotentOnRandomReplies(t *testing.T) {
	tokens := []string{
		"Hei", "smerte", "Rygg", "VIKTIG", "INFORMASJON", "HJELP", "ØYEBLIKKELIG", "&",
		".", "!", "?", ",", ",,", "1,5", "2.", "12.", "ca.", "i", "i3", "3", "40095900", "+47", "+4740095900",
		"📞", "📞+47", "**", "*", "#", "###", " ", "  ", "\t", "\n", "\n\n\n", " \n", "\n ",
		"a", "æ", "Å", "og", "uker",
	}
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 5000; i++ {
		var b strings.Builder
		for n := rng.Intn(14); n >= 0; n-- {
			b.WriteString(tokens[rng.Intn(len(tokens))])
		}
		in := b.String()
		once := Clean(in)
		require.Equal(t, once, Clean(once), "input %q", in)
	}
}
