package assist

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/DarioAlonsoCerezo/binnacle"
	"github.com/DarioAlonsoCerezo/binnacle/docs"
	"github.com/DarioAlonsoCerezo/binnacle/renderer"
)

const model = "gemini-2.5-pro"

func newFacilitator(experts ...*Expert) *Expert {
	return &Expert{
		Name:      "Facilitator",
		ModelName: model,
		Config: &genai.GenerateContentConfig{
			Tools: []*genai.Tool{
				{FunctionDeclarations: NewDeclaration(experts)},
			},
			SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: `
			You facilitate a conversation about the user's imported broker
			transaction history. The experts declared in your tools are at your
			service and keep the context of your previous questions.

			The user asks about their accounts, open option positions, cash
			movements and daily snapshots. Ask the Bookkeeper for anything that
			lives in the user's own records; ask the Markets expert for current
			public information. Answer in markdown.
		`}}},
		},
		Library: NewLibrary(experts),
	}
}

// NewMarkets is the outward-looking expert. It has no access to the
// user's records and grounds its answers with search.
func NewMarkets() *Expert {
	return &Expert{
		Name: "Markets",
		Description: `An expert on public markets: companies, funds,
		tickers, corporate events and recent news. Ask the Markets expert
		whenever the answer needs current or public information.`,
		ModelName: model,
		Config: &genai.GenerateContentConfig{
			Tools: []*genai.Tool{
				{GoogleSearch: &genai.GoogleSearch{}},
			},
			SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: `
			You are an expert on financial markets and institutions. Use search
			to ground every assertion, and relate what you find to the question
			you were asked.
		`}}},
		},
	}
}

// Source is the slice of storage the bookkeeper may read. The store
// satisfies it.
type Source interface {
	Accounts(ctx context.Context) ([]string, error)
	ListOpenOptions(ctx context.Context, account string) ([]*binnacle.OptionTrade, error)
	ListSnapshots(ctx context.Context, account string) ([]*binnacle.Snapshot, error)
	ListMovements(ctx context.Context, account string) ([]*binnacle.Movement, error)
}

// NewBookkeeper is the expert over the user's own records. Its function
// library reads src and answers with the same markdown reports the
// command line prints.
func NewBookkeeper(src Source) *Expert {
	lib := bookkeeperLibrary(src)
	return &Expert{
		Name: "Bookkeeper",
		Description: `The Bookkeeper reads the user's imported transaction
		history: accounts, open option positions, cash movements and daily
		snapshots. Ask it for anything about the user's own records.`,
		ModelName: model,
		Config: &genai.GenerateContentConfig{
			Tools: []*genai.Tool{
				{FunctionDeclarations: NewDeclaration(lib)},
			},
			SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: `
			You are the bookkeeper of the user's imported broker history. Use
			your tools to read the records; never invent figures. Tool output
			is markdown, pass its tables through when they answer the question.
			Forgive approximate language and figure out which account and
			report the user meant.

			Below is the documentation of the domain you answer about.

		` + must(docs.GetTopics("snapshots", "fifo"))}}},
		},
		Library: NewLibrary(lib),
	}
}

// bookkeeperLibrary binds the bookkeeper's callable functions to src.
func bookkeeperLibrary(src Source) []Function {
	accountParam := &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"account": {
				Type:        genai.TypeString,
				Description: "The account name, as returned by Accounts.",
			},
		},
		Required: []string{"account"},
	}

	accounts := &Func{
		Decl: &genai.FunctionDeclaration{
			Name:        "Accounts",
			Description: "Accounts lists the name of every imported account.",
			Parameters:  &genai.Schema{Type: genai.TypeObject},
			Response: &genai.Schema{
				Type:        genai.TypeString,
				Description: "One account name per line.",
			},
		},
		Func: func(ctx context.Context, id string, args map[string]any) *genai.FunctionResponse {
			names, err := src.Accounts(ctx)
			if err != nil {
				return errResponse(id, "Accounts", err)
			}
			var out string
			for _, n := range names {
				out += n + "\n"
			}
			return okResponse(id, "Accounts", out)
		},
	}

	openPositions := &Func{
		Decl: &genai.FunctionDeclaration{
			Name:        "OpenPositions",
			Description: "OpenPositions lists the account's open option legs: ticker, type, strike, expiration and net premium.",
			Parameters:  accountParam,
			Response: &genai.Schema{
				Type:        genai.TypeString,
				Description: "A markdown table of the open option legs.",
			},
		},
		Func: func(ctx context.Context, id string, args map[string]any) *genai.FunctionResponse {
			account, err := accountArg(args)
			if err != nil {
				return errResponse(id, "OpenPositions", err)
			}
			legs, err := src.ListOpenOptions(ctx, account)
			if err != nil {
				return errResponse(id, "OpenPositions", err)
			}
			return okResponse(id, "OpenPositions", renderer.OpenOptionsMarkdown(legs))
		},
	}

	snapshots := &Func{
		Decl: &genai.FunctionDeclaration{
			Name:        "Snapshots",
			Description: "Snapshots returns the account's daily financial aggregates: cash flow, realized and unrealized gains, options income, dividends.",
			Parameters:  accountParam,
			Response: &genai.Schema{
				Type:        genai.TypeString,
				Description: "A markdown table per currency, one row per day.",
			},
		},
		Func: func(ctx context.Context, id string, args map[string]any) *genai.FunctionResponse {
			account, err := accountArg(args)
			if err != nil {
				return errResponse(id, "Snapshots", err)
			}
			snaps, err := src.ListSnapshots(ctx, account)
			if err != nil {
				return errResponse(id, "Snapshots", err)
			}
			return okResponse(id, "Snapshots", renderer.SnapshotsMarkdown(snaps))
		},
	}

	movements := &Func{
		Decl: &genai.FunctionDeclaration{
			Name:        "Movements",
			Description: "Movements lists the account's cash movements and transfers in chronological order, with a total per currency.",
			Parameters:  accountParam,
			Response: &genai.Schema{
				Type:        genai.TypeString,
				Description: "A markdown table of the cash movements.",
			},
		},
		Func: func(ctx context.Context, id string, args map[string]any) *genai.FunctionResponse {
			account, err := accountArg(args)
			if err != nil {
				return errResponse(id, "Movements", err)
			}
			ms, err := src.ListMovements(ctx, account)
			if err != nil {
				return errResponse(id, "Movements", err)
			}
			return okResponse(id, "Movements", renderer.MovementsMarkdown(ms))
		},
	}

	return []Function{accounts, openPositions, snapshots, movements}
}

func accountArg(args map[string]any) (string, error) {
	account, ok := args["account"].(string)
	if !ok {
		return "", fmt.Errorf("argument 'account' is not a string but %T", args["account"])
	}
	return account, nil
}

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}
