// Package fusiondex embeds the fusiondex search engine in a Go program.
//
// Collections, documents and search run in-process on the same services
// the HTTP server uses: documents are coerced against the collection schema,
// vector fields are indexed with HNSW and keyword and vector results are
// blended with weighted reciprocal rank fusion.
//
//	client, _ := fusiondex.New(fusiondex.WithEmbedder(myEmbedder))
//	defer client.Close()
//
//	_, _ = client.Collections().Create(ctx, "products", []fusiondex.Field{
//	    {Name: "title", Type: fusiondex.FieldString},
//	    {Name: "points", Type: fusiondex.FieldInt32},
//	    {Name: "vec", Type: fusiondex.FieldFloatArray, NumDim: 4, Optional: true},
//	})
//	_, _ = client.Documents("products").Upsert(ctx, fusiondex.Document{"id": "1", "title": "shoe", "points": 3})
//	res, _ := client.Search("products").Query(ctx, fusiondex.SearchParams{Q: "shoe", QueryBy: []string{"title"}})
package fusiondex
