package main

// compile reads an ARPA back-off language model and writes the
// compiled succinct-trie container fslm.Load/fslm.LoadMapped expect,
// the way original_source/cmd/compile/compile.go turns an ARPA file
// into a gob-encoded Hashed model.

import (
	"flag"
	"io"
	"os"

	"github.com/golang/glog"
	"github.com/kho/easy"
	"github.com/kho/fslm"
)

func main() {
	var args struct {
		Arpa   string `name:"arpa" usage:"input ARPA file, '-' for stdin"`
		Output string `name:"output" usage:"output container file, '-' for stdout"`
	}
	quantizerRange := flag.Float64("fslm.quantizer_range", 20, "clamp range for quantized log-probabilities and back-off weights")
	hasBackoff := flag.Bool("fslm.backoff_weights", true, "store a sparse back-off weight table")
	includeUnigramPredictions := flag.Bool("fslm.unigram_predictions", true, "top up PredictNextWords with unigrams when the beam falls short")
	enablePrefixUnigrams := flag.Bool("fslm.prefix_unigrams", false, "build the sparse prefix-value table (best completion log-probability per prefix)")
	maxNumTermIds := flag.Int("fslm.max_term_ids", 0, "exclusive upper bound on external term-ids: only the top (value-4) terms get one; 0 gives every term an id")
	uppercasePenalty := flag.Float64("fslm.uppercase_penalty", -0.7, "extra back-off weight added to a single-term lookup whose term is not all lowercase")
	minUnigramLogp := flag.Float64("fslm.min_unigram_logp", -99, "minimum unigram log-probability for a word to be predicted from a context of more than one term")
	easy.ParseFlagsAndArgs(&args)

	var in io.Reader = os.Stdin
	if args.Arpa != "" && args.Arpa != "-" {
		f, err := easy.Open(args.Arpa)
		if err != nil {
			glog.Fatal(err)
		}
		defer f.Close()
		in = f
	}

	params := fslm.Params{
		QuantizerRange:                     float32(*quantizerRange),
		HasBackoffWeights:                  *hasBackoff,
		IncludeUnigramPredictions:          *includeUnigramPredictions,
		EnablePrefixUnigrams:               *enablePrefixUnigrams,
		MaxNumTermIds:                      int32(*maxNumTermIds),
		UppercaseUnigramExtraBackoffWeight: fslm.Weight(*uppercasePenalty),
		MinUnigramLogpForPredictions:       fslm.Weight(*minUnigramLogp),
		FormatVersion:                      1,
	}

	var lm *fslm.LM
	var err error
	glog.Info("reading ARPA model took ", easy.Timed(func() {
		lm, err = fslm.ReadArpa(in, params)
	}))
	if err != nil {
		glog.Fatal(err)
	}

	var out io.Writer = os.Stdout
	if args.Output != "" && args.Output != "-" {
		f := easy.MustCreate(args.Output)
		defer f.Close()
		out = f
	}
	if err := fslm.Save(out, lm); err != nil {
		glog.Fatal(err)
	}
}
