// Package answerd provides an embeddable Go client for the answerd
// retrieval-augmented question answering pipeline backed by Redis with
// search modules.
//
// The pipeline embeds a query, retrieves chunks through hybrid
// vector+lexical search, optionally reranks them with a cross-encoder,
// assembles a cited context and streams a grounded answer:
//
//	client, _ := answerd.New(
//	    answerd.WithRedis("localhost:6379", ""),
//	    answerd.WithOpenAI(os.Getenv("OPENAI_API_KEY"), ""),
//	)
//	defer client.Close()
//
//	stream, _ := client.AnswerStream(ctx, "what is the refund window?", nil)
//	defer stream.Close()
//	for {
//	    event, err := stream.Recv()
//	    if err != nil {
//	        break
//	    }
//	    if event.Type == answerd.EventToken {
//	        fmt.Print(event.Token)
//	    }
//	}
//
// Chunks are written by a separate ingestion service; this client only
// reads them.
package answerd
