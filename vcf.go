// Copyright (C) The SimBA-hap Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package simbahap

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/klauspost/pgzip"
	log "github.com/sirupsen/logrus"
	"github.com/willf/bitset"
)

// variant carries the fields of an accepted input record that pass
// through into the output verbatim.
type variant struct {
	chrom string
	pos   int
	ref   string
	alt   string
}

// vcfInput is everything read from the input cohort: the contig name
// table, the accepted biallelic variants, and one integer-count dosage
// histogram per variant.
type vcfInput struct {
	contigs  []string
	variants []variant
	targets  []histogram
}

// zopen opens fnm for reading, decompressing transparently if the name
// ends with ".gz". "-" reads from stdin.
func zopen(fnm string, stdin io.Reader) (io.ReadCloser, error) {
	var f io.ReadCloser
	if fnm == "-" {
		f = io.NopCloser(stdin)
	} else {
		var err error
		f, err = os.Open(fnm)
		if err != nil {
			return nil, err
		}
	}
	if !strings.HasSuffix(fnm, ".gz") {
		return f, nil
	}
	rdr, err := pgzip.NewReader(bufio.NewReaderSize(f, 4*1024*1024))
	if err != nil {
		f.Close()
		return nil, err
	}
	return gzipr{rdr, f}, nil
}

// gzipr wraps a ReadCloser and a Closer, presenting a single Close()
// method that closes both wrapped objects.
type gzipr struct {
	io.ReadCloser
	io.Closer
}

func (gr gzipr) Close() error {
	e1 := gr.ReadCloser.Close()
	e2 := gr.Closer.Close()
	if e1 != nil {
		return e1
	}
	return e2
}

// genotype splits the GT entry of one sample column into allele tokens,
// accepting both phased and unphased separators.
func genotype(column string) []string {
	if i := strings.IndexByte(column, ':'); i >= 0 {
		column = column[:i]
	}
	return strings.FieldsFunc(column, func(r rune) bool {
		return r == '|' || r == '/'
	})
}

// readVCF parses the input cohort. Polyallelic records, records whose
// genotypes are all missing, and missing genotypes within a record are
// skipped with a diagnostic; genotypes whose arity differs from ploidy
// fail the read. maxMarkers caps the number of accepted records; 0 means
// no cap.
func readVCF(fnm string, stdin io.Reader, ploidy, maxMarkers int) (*vcfInput, error) {
	f, err := zopen(fnm, stdin)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	in := &vcfInput{}
	seen := map[string]bool{}
	rdr := bufio.NewReaderSize(f, 1<<20)
	for lineno := 0; ; {
		line, err := rdr.ReadString('\n')
		if err == io.EOF && line == "" {
			break
		} else if err != nil && err != io.EOF {
			return nil, err
		}
		lineno++
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "##") {
			if id := contigID(line); id != "" && !seen[id] {
				seen[id] = true
				in.contigs = append(in.contigs, id)
			}
			continue
		}
		if strings.HasPrefix(line, "#") {
			continue
		}
		if maxMarkers > 0 && len(in.targets) == maxMarkers {
			break
		}

		fields := strings.Split(line, "\t")
		if len(fields) < 8 {
			return nil, fmt.Errorf("%s line %d: %d fields, want at least 8", fnm, lineno, len(fields))
		}
		pos, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, fmt.Errorf("%s line %d: position %q: %s", fnm, lineno, fields[1], err)
		}
		v := variant{chrom: fields[0], pos: pos, ref: fields[3], alt: fields[4]}
		if strings.Contains(v.alt, ",") {
			log.Warnf("INPUT VARIANT @ %s:%d POLYALLELIC", v.chrom, v.pos)
			continue
		}

		var columns []string
		if len(fields) > 9 {
			columns = fields[9:]
		}
		target := newHistogram(ploidy)
		for _, column := range columns {
			alleles := genotype(column)
			if missing(alleles) {
				log.Warnf("INPUT GENOTYPE @ %s:%d UNKNOWN", v.chrom, v.pos)
				continue
			}
			if len(alleles) != ploidy {
				return nil, fmt.Errorf("%s line %d: genotype %q has %d alleles, want ploidy %d", fnm, lineno, column, len(alleles), ploidy)
			}
			d := 0
			for _, a := range alleles {
				if a == "1" {
					d++
				}
			}
			target[d]++
		}
		if target.sum() == 0 {
			log.Warnf("INPUT VARIANT @ %s:%d NO USABLE GENOTYPES", v.chrom, v.pos)
			continue
		}
		if !seen[v.chrom] {
			seen[v.chrom] = true
			in.contigs = append(in.contigs, v.chrom)
		}
		in.variants = append(in.variants, v)
		in.targets = append(in.targets, target)
		log.Infof("INPUT DOSAGES @ %s:%d # %v", v.chrom, v.pos, target)
	}
	return in, nil
}

func missing(alleles []string) bool {
	for _, a := range alleles {
		if a == "." {
			return true
		}
	}
	return false
}

// contigID extracts NAME from a "##contig=<ID=NAME,...>" header line.
func contigID(line string) string {
	const prefix = "##contig=<"
	if !strings.HasPrefix(line, prefix) {
		return ""
	}
	for _, attr := range strings.Split(strings.TrimSuffix(line[len(prefix):], ">"), ",") {
		if strings.HasPrefix(attr, "ID=") {
			return attr[3:]
		}
	}
	return ""
}

// writeVCF emits the simulated population: a VCFv4.2 header declaring the
// GT format and the propagated contigs, then one record per marker whose
// sample columns are phased ploidy-length genotypes read from the
// sample-allele view over the fitted founder matrix. fnm "" or "-" writes
// to stdout; a ".gz" suffix compresses the output.
func writeVCF(fnm string, stdout io.Writer, in *vcfInput, hm *haplotypeMap, founders []*bitset.BitSet, ploidy int) error {
	var out io.WriteCloser
	if fnm == "" || fnm == "-" {
		out = nopCloser{stdout}
	} else {
		f, err := os.OpenFile(fnm, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0666)
		if err != nil {
			return err
		}
		out = f
	}
	bufw := bufio.NewWriter(out)
	var w io.Writer = bufw
	var gzw *pgzip.Writer
	if strings.HasSuffix(fnm, ".gz") {
		gzw = pgzip.NewWriter(bufw)
		w = gzw
	}

	nsamples := hm.samples()
	fmt.Fprintf(w, "##fileformat=VCFv4.2\n")
	fmt.Fprintf(w, "##FORMAT=<ID=GT,Number=1,Type=String,Description=\"Genotype\">\n")
	for _, contig := range in.contigs {
		fmt.Fprintf(w, "##contig=<ID=%s>\n", contig)
	}
	fmt.Fprintf(w, "#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT")
	for s := 0; s < nsamples; s++ {
		fmt.Fprintf(w, "\tSAMPLE_%d", s)
	}
	fmt.Fprintf(w, "\n")

	gt := make([]byte, 0, 2*ploidy+1)
	for m, v := range in.variants {
		fmt.Fprintf(w, "%s\t%d\t%d\t%s\t%s\t.\t.\t.\tGT", v.chrom, v.pos, m, v.ref, v.alt)
		view := hm.view(founders[m])
		for s := 0; s < nsamples; s++ {
			gt = append(gt[:0], '\t')
			for h := 0; h < ploidy; h++ {
				if h > 0 {
					gt = append(gt, '|')
				}
				gt = append(gt, view.allele(s, h))
			}
			w.Write(gt)
		}
		fmt.Fprintf(w, "\n")
	}

	if gzw != nil {
		if err := gzw.Close(); err != nil {
			out.Close()
			return err
		}
	}
	if err := bufw.Flush(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }
