/*
Package wool grows a branching tree of text with a language model.

Every node holds a delta of text. The context of a node is the concatenation
of the deltas on the path from the root down to it. Asking for continuations
of a node fans out one upstream request per sibling, all sharing that context,
and each result lands in its own placeholder node independently: one failed
request never affects its siblings.

# Architecture

The core is hexagonal. pkg/domain holds the tree and its pure operations,
pkg/ports the interfaces for persistence, settings, locking and generation,
and the adapters implement them (file, memory and redis stores, the
OpenRouter/OpenAI-compatible client). Service ties them together and is what
the HTTP server, the MCP server and the CLI drive.

# Usage

	svc, err := wool.New(
		wool.WithStore(file.New(".")),
		wool.WithSettings(cfg),
	)
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	tree, _ := svc.CreateTree(ctx, "Once upon a time")

	// Three continuations of the root, generated in parallel.
	resp, err := svc.GenerateFrom(ctx, tree.FocusedNodeID(), 3, nil)
	if err != nil {
		log.Fatal(err)
	}
	for _, n := range resp.Nodes {
		fmt.Println(n.ID, n.Text, n.Error)
	}

Per-call settings are a loose map overlaid on the stored settings, e.g.
{"temperature": 1.2, "untitled_trick": true}. The credential is the first
non-empty of the per-call token, OPENROUTER_API_KEY and the stored token.
*/
package wool
