package htmldoc

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const adoptionPage = `<html><body>
<table class="layout"><tr><td>Navigation</td></tr></table>
<table>
  <thead><tr><th>State</th><th>Current Edition</th><th>Notes</th></tr></thead>
  <tbody>
    <tr><td>Alabama</td><td>2020 <br>(7/1/2022)</td><td>Statewide</td></tr>
    <tr><td>Arizona</td><td>Local adoption only</td><td></td></tr>
    <tr><td>Ohio</td><td>2023 (1/1/2024)<table><tr><td>nested</td></tr></table></td></tr>
  </tbody>
</table>
</body></html>`

func TestTables(t *testing.T) {
	t.Parallel()

	tables, err := Tables(strings.NewReader(adoptionPage))
	require.NoError(t, err)
	require.Len(t, tables, 3)

	assert.Equal(t, []string{"Navigation"}, tables[0].Header)
	assert.Empty(t, tables[0].Rows)
	assert.False(t, tables[0].HeaderContains("State", "Edition"))

	adoption := tables[1]
	assert.True(t, adoption.HeaderContains("State", "Edition"))
	assert.Equal(t, []string{"State", "Current Edition", "Notes"}, adoption.Header)
	require.Len(t, adoption.Rows, 3)
	assert.Equal(t, []string{"Alabama", "2020 (7/1/2022)", "Statewide"}, adoption.Rows[0])
	assert.Equal(t, []string{"Arizona", "Local adoption only", ""}, adoption.Rows[1])
	// nested table text stays inside its cell but its rows are not adopted
	assert.Equal(t, "Ohio", adoption.Rows[2][0])
	assert.Len(t, adoption.Rows[2], 2)

	assert.Equal(t, []string{"nested"}, tables[2].Header)
}

func TestSnippets(t *testing.T) {
	t.Parallel()

	page := `<div>
<div class="search-result">Chapter 5: <b>IBC 2018</b> adopted</div>
<article class="result">Sec. 5-2 IRC 2018</article>
<div class="result-snippet big">Fire code IFC 2018<div class="result-snippet">inner</div></div>
<p class="search-result-count">3 results</p>
<div class="search-result">fourth</div>
</div>`

	sel := []Selector{{Class: "search-result"}, {Class: "result-snippet"}, {Tag: "article", Class: "result"}}
	got, err := Snippets(strings.NewReader(page), sel, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"Chapter 5: IBC 2018 adopted",
		"Sec. 5-2 IRC 2018",
		"Fire code IFC 2018 inner",
		"fourth",
	}, got)

	got, err = Snippets(strings.NewReader(page), sel, 2)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestDocumentText(t *testing.T) {
	t.Parallel()

	txt, err := DocumentText(strings.NewReader(`<p>Residential IECC 2021</p><script>ignore()</script><style>p{}</style><p>90.1-2019</p>`))
	require.NoError(t, err)
	assert.Equal(t, "Residential IECC 2021 90.1-2019", txt)
}
