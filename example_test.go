package wool_test

import (
	"context"
	"fmt"
	"log"

	"github.com/lyramakesmusic/wool"
	"github.com/lyramakesmusic/wool/pkg/domain"
	"github.com/lyramakesmusic/wool/pkg/ports"
)

// ExampleService_GenerateFrom grows a tree with a canned generator in place of
// the upstream service.
func ExampleService_GenerateFrom() {
	canned := ports.GeneratorFunc(func(ctx context.Context, prompt string, s domain.Settings) domain.Result {
		return domain.Success(", there lived a fox.")
	})

	svc, err := wool.New(wool.WithGenerator(canned))
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	tree, err := svc.CreateTree(ctx, "Once upon a time")
	if err != nil {
		log.Fatal(err)
	}

	resp, err := svc.GenerateFrom(ctx, tree.FocusedNodeID(), 2, nil)
	if err != nil {
		log.Fatal(err)
	}

	text, _ := svc.Context(ctx, resp.Nodes[0].ID)
	fmt.Println(len(resp.Nodes))
	fmt.Println(text)
	// Output:
	// 2
	// Once upon a time, there lived a fox.
}
