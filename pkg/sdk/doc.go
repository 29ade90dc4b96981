// Package docqa embeds the docqa retrieval core in a Go program.
//
// A Client splits a document into chunks, embeds and stores them in a vector
// index (Valkey, Redis or process memory), and answers questions from the
// closest chunk.
//
//	client, _ := docqa.New(ctx,
//	    docqa.WithMemory(),
//	    docqa.WithOpenAI(os.Getenv("OPENAI_API_KEY"), ""),
//	)
//	defer client.Close()
//
//	res, _ := client.Ingest(ctx, text)
//	ans, _ := client.Ask(ctx, "What is the warranty period?")
//	fmt.Println(ans.Text, ans.ChunkID)
//
// Custom providers plug in through WithEmbedder and WithAnswerer.
package docqa
