// Package sdk provides an embedded Go client for the searchcore hybrid
// search engine: Redis-backed vector + lexical retrieval over experiment
// documents, with a SQLite system of record.
//
// The client wires the full engine in-process, so no searchcore server is
// required:
//
//	client, _ := sdk.New(ctx,
//	    sdk.WithRedis("localhost:6379", ""),
//	    sdk.WithSQLite("searchcore.db"),
//	    sdk.WithEmbedder(myEmbedder),
//	    sdk.WithGenerator(myGenerator),
//	)
//	defer client.Close()
//
//	_ = client.UpsertExperiment(ctx, sdk.Experiment{ID: 1, Title: "Prompt injection probe"})
//	res := client.Search(ctx, sdk.SearchParams{Query: "how do I detect prompt injection"})
//
// Embedder and Generator are optional. Without an embedder, natural-language
// queries degrade to lexical matching and indexed documents carry no vectors.
// Without a generator, query analysis and perspective generation fall back to
// their heuristic paths.
package sdk
