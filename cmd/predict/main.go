package main

// predict loads a compiled LM container and, for each line of input,
// treats the line's whitespace-separated tokens as the typed-so-far
// context and prints the top next-word predictions, the way
// original_source/cmd/score/score.go consumes a compiled model and a
// stdin corpus. Here the per-line output is ranked candidates rather
// than a perplexity score.

import (
	"bufio"
	"bytes"
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/golang/glog"
	"github.com/kho/easy"
	"github.com/kho/fslm"
)

func main() {
	var args struct {
		Model string `name:"model" usage:"compiled LM container file"`
	}
	maxResults := flag.Int("n", 10, "number of predictions to print per line")
	useMmap := flag.Bool("mmap", true, "memory-map the model file instead of reading it whole")
	easy.ParseFlagsAndArgs(&args)

	var lm *fslm.LM
	var closer interface{ Close() error }

	if *useMmap {
		m, mf, err := fslm.LoadMapped(args.Model)
		if err != nil {
			glog.Fatal("loading model: ", err)
		}
		lm, closer = m, mf
	} else {
		f, err := easy.Open(args.Model)
		if err != nil {
			glog.Fatal("opening model: ", err)
		}
		defer f.Close()
		m, err := fslm.Load(f)
		if err != nil {
			glog.Fatal("loading model: ", err)
		}
		lm = m
	}
	if closer != nil {
		defer closer.Close()
	}

	in := bufio.NewScanner(os.Stdin)
	for in.Scan() {
		var terms []string
		for _, w := range bytes.Fields(in.Bytes()) {
			terms = append(terms, string(w))
		}
		predictLine(lm, terms, *maxResults)
	}
	if err := in.Err(); err != nil {
		glog.Fatal("reading stdin: ", err)
	}
}

type candidate struct {
	word string
	logp fslm.Weight
}

func predictLine(lm *fslm.LM, terms []string, maxResults int) {
	results := make(map[string]fslm.Weight)
	lm.PredictNextWords(nil, terms, maxResults, results)

	candidates := make([]candidate, 0, len(results))
	for w, logp := range results {
		candidates = append(candidates, candidate{w, logp})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].logp != candidates[j].logp {
			return candidates[i].logp > candidates[j].logp
		}
		return candidates[i].word < candidates[j].word
	})

	for i, c := range candidates {
		if i > 0 {
			fmt.Print("\t")
		}
		fmt.Printf("%s:%g", c.word, c.logp)
	}
	fmt.Println()
}
