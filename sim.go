// Copyright (C) The SimBA-hap Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package simbahap

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	_ "net/http/pprof"
	"os"
	"time"

	"github.com/kshedden/gonpy"
	log "github.com/sirupsen/logrus"
	"github.com/willf/bitset"
)

type simulator struct {
	inputFilename    string
	outputFilename   string
	statsFilename    string
	foundersFilename string
	ploidy           int
	founders         int
	samples          int
	markers          int
	seed             int64
	mip              bool
}

func (cmd *simulator) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.StringVar(&cmd.inputFilename, "i", "", "input VCF `file`, possibly gzipped (\"-\" for stdin)")
	flags.StringVar(&cmd.inputFilename, "input-vcf", "", "alias for -i")
	flags.StringVar(&cmd.outputFilename, "o", "", "output VCF `file` (default stdout)")
	flags.StringVar(&cmd.outputFilename, "output-vcf", "", "alias for -o")
	flags.IntVar(&cmd.ploidy, "p", 4, "organism `ploidy`, 2..8")
	flags.IntVar(&cmd.ploidy, "ploidy", 4, "alias for -p")
	flags.IntVar(&cmd.founders, "f", 1, "`number` of founder haplotypes to simulate")
	flags.IntVar(&cmd.founders, "founders", 1, "alias for -f")
	flags.IntVar(&cmd.samples, "s", 1, "`number` of samples to simulate")
	flags.IntVar(&cmd.samples, "samples", 1, "alias for -s")
	flags.IntVar(&cmd.markers, "m", 1, "maximum `number` of markers to use (default: all markers in the input)")
	flags.IntVar(&cmd.markers, "markers", 1, "alias for -m")
	flags.Int64Var(&cmd.seed, "g", 0, "`seed` for pseudo-random number generation")
	flags.Int64Var(&cmd.seed, "seed", 0, "alias for -g")
	flags.BoolVar(&cmd.mip, "mip", false, "compute the optimal fit via mixed-integer programming (default: approximate greedy fit)")
	flags.StringVar(&cmd.statsFilename, "output-stats", "", "also write a per-marker fit report to JSON `file`")
	flags.StringVar(&cmd.foundersFilename, "output-founders", "", "also write the founder allele matrix to numpy `file`")
	pprofAddr := flags.String("pprof", "", "serve Go profile data at http://`[addr]:port`")
	err = flags.Parse(args)
	if err == flag.ErrHelp {
		err = nil
		return 0
	} else if err != nil {
		return 2
	}
	markersSet := false
	flags.Visit(func(f *flag.Flag) {
		if f.Name == "m" || f.Name == "markers" {
			markersSet = true
		}
	})

	if *pprofAddr != "" {
		go func() {
			log.Println(http.ListenAndServe(*pprofAddr, nil))
		}()
	}

	// Configuration errors are reported before the input is opened.
	switch {
	case cmd.inputFilename == "":
		err = fmt.Errorf("-input-vcf is required")
	case cmd.ploidy < 2 || cmd.ploidy > 8:
		err = fmt.Errorf("ploidy %d out of range 2..8", cmd.ploidy)
	case cmd.founders < 1:
		err = fmt.Errorf("founders must be at least 1")
	case cmd.samples < 1:
		err = fmt.Errorf("samples must be at least 1")
	case markersSet && cmd.markers < 1:
		err = fmt.Errorf("markers must be at least 1")
	case cmd.seed < 0:
		err = fmt.Errorf("seed must be non-negative")
	case cmd.founders > cmd.samples*cmd.ploidy:
		err = fmt.Errorf("%d founders exceed the %d haplotype slots available (%d samples × ploidy %d)",
			cmd.founders, cmd.samples*cmd.ploidy, cmd.samples, cmd.ploidy)
	}
	if err != nil {
		return 2
	}
	if !markersSet {
		cmd.markers = 0 // no cap
	}

	err = cmd.run(stdin, stdout)
	if err != nil {
		return 1
	}
	return 0
}

func (cmd *simulator) run(stdin io.Reader, stdout io.Writer) error {
	rng := rand.New(rand.NewSource(cmd.seed))

	in, err := readVCF(cmd.inputFilename, stdin, cmd.ploidy, cmd.markers)
	if err != nil {
		return err
	}
	if len(in.targets) == 0 {
		log.Warn("no usable markers in input, writing a header-only VCF")
	}
	for _, target := range in.targets {
		target.normalize(cmd.samples)
	}

	counts, err := founderDistribution(cmd.founders, cmd.samples, cmd.ploidy, rng)
	if err != nil {
		return err
	}
	hm := newHaplotypeMap(counts, cmd.samples, cmd.ploidy, rng)

	founders := make([]*bitset.BitSet, len(in.targets))
	for m := range founders {
		founders[m] = bitset.New(uint(cmd.founders))
	}
	var fit fitter
	if cmd.mip {
		fit = newMIPFitter(hm, cmd.ploidy, cmd.founders)
	} else {
		fit = newGreedyFitter(hm, cmd.ploidy)
	}

	start := time.Now()
	dists, err := fitFounders(fit, founders, in)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)
	log.Infof("SECONDS: %g", elapsed.Seconds())

	if cmd.statsFilename != "" {
		err = cmd.writeStats(in, hm, founders, dists, elapsed)
		if err != nil {
			return err
		}
	}
	if cmd.foundersFilename != "" {
		err = cmd.writeFounders(founders)
		if err != nil {
			return err
		}
	}
	return writeVCF(cmd.outputFilename, stdout, in, hm, founders, cmd.ploidy)
}

// fitFounders runs the configured fitter over every marker independently,
// in input order, storing each marker's founder alleles and returning the
// achieved per-marker distances.
func fitFounders(fit fitter, founders []*bitset.BitSet, in *vcfInput) ([]float64, error) {
	dists := make([]float64, len(in.targets))
	var total float64
	for m, target := range in.targets {
		d, err := fit.Fit(founders[m], target)
		if err != nil {
			return nil, fmt.Errorf("marker %d @ %s:%d: %w", m, in.variants[m].chrom, in.variants[m].pos, err)
		}
		dists[m] = d
		total += d
		log.Infof("DISTANCE @ %s:%d = %g", in.variants[m].chrom, in.variants[m].pos, d)
	}
	log.Infof("DISTANCES: %g", total)
	return dists, nil
}

type markerStats struct {
	Chrom    string    `json:"chrom"`
	Pos      int       `json:"pos"`
	Target   histogram `json:"target"`
	Fitted   histogram `json:"fitted"`
	Distance float64   `json:"distance"`
	PValue   float64   `json:"pvalue"`
}

type runStats struct {
	Ploidy   int           `json:"ploidy"`
	Founders int           `json:"founders"`
	Samples  int           `json:"samples"`
	Seed     int64         `json:"seed"`
	MIP      bool          `json:"mip"`
	Markers  []markerStats `json:"markers"`
	Distance float64       `json:"total_distance"`
	Seconds  float64       `json:"seconds"`
}

func (cmd *simulator) writeStats(in *vcfInput, hm *haplotypeMap, founders []*bitset.BitSet, dists []float64, elapsed time.Duration) error {
	stats := runStats{
		Ploidy:   cmd.ploidy,
		Founders: cmd.founders,
		Samples:  cmd.samples,
		Seed:     cmd.seed,
		MIP:      cmd.mip,
		Markers:  make([]markerStats, len(in.targets)),
		Seconds:  elapsed.Seconds(),
	}
	for m, target := range in.targets {
		fitted := hm.view(founders[m]).histogram(cmd.ploidy)
		stats.Markers[m] = markerStats{
			Chrom:    in.variants[m].chrom,
			Pos:      in.variants[m].pos,
			Target:   target,
			Fitted:   fitted,
			Distance: dists[m],
			PValue:   pvalue(target, fitted),
		}
		stats.Distance += dists[m]
	}
	buf, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(cmd.statsFilename, append(buf, '\n'), 0666)
}

// writeFounders dumps the founder allele matrix as a markers × founders
// uint8 numpy array.
func (cmd *simulator) writeFounders(founders []*bitset.BitSet) error {
	f, err := os.OpenFile(cmd.foundersFilename, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0666)
	if err != nil {
		return err
	}
	bufw := bufio.NewWriter(f)
	npw, err := gonpy.NewWriter(nopCloser{bufw})
	if err != nil {
		f.Close()
		return err
	}
	npw.Shape = []int{len(founders), cmd.founders}
	data := make([]uint8, len(founders)*cmd.founders)
	for m, alts := range founders {
		for j := 0; j < cmd.founders; j++ {
			if alts.Test(uint(j)) {
				data[m*cmd.founders+j] = 1
			}
		}
	}
	err = npw.WriteUint8(data)
	if err != nil {
		f.Close()
		return err
	}
	if err = bufw.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
