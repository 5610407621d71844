package assist

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/DarioAlonsoCerezo/binnacle"
	"github.com/DarioAlonsoCerezo/binnacle/date"
)

type fakeSource struct{}

func (f *fakeSource) Accounts(_ context.Context) ([]string, error) {
	return []string{"roth", "taxable"}, nil
}

func (f *fakeSource) ListOpenOptions(_ context.Context, account string) ([]*binnacle.OptionTrade, error) {
	if account != "taxable" {
		return nil, nil
	}
	at := time.Date(2024, time.June, 21, 9, 31, 0, 0, time.UTC)
	leg := binnacle.NewOptionTrade(at, "SPY", account, binnacle.OptSellToOpen, binnacle.Put,
		decimal.NewFromInt(450), date.New(2024, time.July, 19), binnacle.Q(1),
		binnacle.M(240, "USD"), binnacle.M(1, "USD"), binnacle.M(0.14, "USD"))
	return []*binnacle.OptionTrade{leg}, nil
}

func (f *fakeSource) ListSnapshots(_ context.Context, account string) ([]*binnacle.Snapshot, error) {
	return []*binnacle.Snapshot{{
		Account:   account,
		Currency:  "USD",
		Date:      date.New(2024, time.June, 21),
		Deposited: binnacle.M(5000, "USD"),
		Withdrawn: binnacle.M(0, "USD"),
	}}, nil
}

func (f *fakeSource) ListMovements(_ context.Context, account string) ([]*binnacle.Movement, error) {
	at := time.Date(2024, time.June, 20, 16, 0, 0, 0, time.UTC)
	m := binnacle.NewMovement(at, binnacle.MovementDeposit, account, binnacle.M(5000, "USD"), "")
	return []*binnacle.Movement{m}, nil
}

func TestBookkeeperLibraryDispatch(t *testing.T) {
	t.Parallel()
	lib := NewLibrary(bookkeeperLibrary(&fakeSource{}))
	ctx := context.Background()

	resp := lib(ctx, &genai.FunctionCall{ID: "1", Name: "Accounts"})
	require.Contains(t, resp.Response, "output")
	assert.Contains(t, resp.Response["output"], "taxable")
	assert.Contains(t, resp.Response["output"], "roth")

	resp = lib(ctx, &genai.FunctionCall{ID: "2", Name: "Balance"})
	require.Contains(t, resp.Response, "error")
	assert.Contains(t, resp.Response["error"], "unknown function")
}

func TestBookkeeperFunctionsRenderMarkdown(t *testing.T) {
	t.Parallel()
	lib := NewLibrary(bookkeeperLibrary(&fakeSource{}))
	ctx := context.Background()
	args := map[string]any{"account": "taxable"}

	resp := lib(ctx, &genai.FunctionCall{ID: "1", Name: "OpenPositions", Args: args})
	require.Contains(t, resp.Response, "output")
	assert.Contains(t, resp.Response["output"], "| SPY | PUT | 450 |")

	resp = lib(ctx, &genai.FunctionCall{ID: "2", Name: "Snapshots", Args: args})
	require.Contains(t, resp.Response, "output")
	assert.Contains(t, resp.Response["output"], "# Snapshot History for taxable")
	assert.Contains(t, resp.Response["output"], "+$5,000.00")

	resp = lib(ctx, &genai.FunctionCall{ID: "3", Name: "Movements", Args: args})
	require.Contains(t, resp.Response, "output")
	assert.Contains(t, resp.Response["output"], "| 2024-06-20 | Deposit | +$5,000.00 |")
}

func TestBookkeeperFunctionsRejectBadAccountArg(t *testing.T) {
	t.Parallel()
	lib := NewLibrary(bookkeeperLibrary(&fakeSource{}))
	ctx := context.Background()

	for _, name := range []string{"OpenPositions", "Snapshots", "Movements"} {
		resp := lib(ctx, &genai.FunctionCall{ID: "1", Name: name})
		require.Contains(t, resp.Response, "error", "function %s", name)
		assert.Contains(t, resp.Response["error"], "account", "function %s", name)
	}
}

// The bookkeeper's instructions embed the domain documentation; building
// the expert fails loudly if a topic disappears.
func TestNewBookkeeperEmbedsDocumentation(t *testing.T) {
	t.Parallel()
	b := NewBookkeeper(&fakeSource{})

	require.NotNil(t, b.Library)
	text := b.Config.SystemInstruction.Parts[0].Text
	assert.Contains(t, text, "# Snapshots")
	assert.Contains(t, text, "# FIFO")

	var names []string
	for _, d := range b.Config.Tools[0].FunctionDeclarations {
		names = append(names, d.Name)
	}
	assert.ElementsMatch(t, []string{"Accounts", "OpenPositions", "Snapshots", "Movements"}, names)
}
