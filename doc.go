// Package darkscan flags manipulative "dark pattern" sentences in UI copy
// with a classifier trained by the train package.
//
// # Quick Start
//
//	det, err := darkscan.Load("dark_pattern_model")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer det.Close()
//
//	hits, err := det.Detect(ctx, "Welcome back. Only 2 left in stock, order now!")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, h := range hits {
//	    fmt.Printf("%.3f %s\n", h.Probability, h.Sentence)
//	}
//
// # Thread Safety
//
// Detector is safe for concurrent use. Native weights are read-only after
// loading; ONNX models are served from a session pool sized by WithPoolSize.
//
// # Artifact Directory
//
// Training writes meta.json, weights.pb and the tokenizer state. A
// transformer classifier exported to model.onnx, with its tokenizer.json or
// sentencepiece.bpe.model, can be dropped into the same layout.
package darkscan
