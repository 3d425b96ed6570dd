// Copyright (C) The SimBA-hap Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package simbahap

import (
	"bytes"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/willf/bitset"
	"gopkg.in/check.v1"
)

type vcfSuite struct{}

var _ = check.Suite(&vcfSuite{})

func writeTempVCF(c *check.C, body string) string {
	fnm := c.MkDir() + "/in.vcf"
	err := os.WriteFile(fnm, []byte(body), 0644)
	c.Assert(err, check.IsNil)
	return fnm
}

const testHeader = `##fileformat=VCFv4.2
##contig=<ID=chr1>
#CHROM	POS	ID	REF	ALT	QUAL	FILTER	INFO	FORMAT	S1	S2
`

func (s *vcfSuite) TestReadBiallelic(c *check.C) {
	fnm := writeTempVCF(c, testHeader+
		"chr1\t100\t.\tA\tT\t.\t.\t.\tGT\t0/0\t1/1\n"+
		"chr1\t200\t.\tC\tG\t.\t.\t.\tGT\t0|1\t0/1\n")
	in, err := readVCF(fnm, nil, 2, 0)
	c.Assert(err, check.IsNil)
	c.Check(in.contigs, check.DeepEquals, []string{"chr1"})
	c.Assert(in.targets, check.HasLen, 2)
	c.Check(in.targets[0], check.DeepEquals, histogram{1, 0, 1})
	c.Check(in.targets[1], check.DeepEquals, histogram{0, 2, 0})
	c.Check(in.variants[1], check.DeepEquals, variant{chrom: "chr1", pos: 200, ref: "C", alt: "G"})
}

func (s *vcfSuite) TestPolyallelicSkipped(c *check.C) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	fnm := writeTempVCF(c, testHeader+
		"chr1\t100\t.\tA\tT\t.\t.\t.\tGT\t0/0\t1/1\n"+
		"chr1\t200\t.\tC\tA,T\t.\t.\t.\tGT\t0/0\t0/1\n")
	in, err := readVCF(fnm, nil, 2, 0)
	c.Assert(err, check.IsNil)
	c.Check(in.targets, check.HasLen, 1)
	c.Check(strings.Contains(buf.String(), "POLYALLELIC"), check.Equals, true)
}

func (s *vcfSuite) TestMissingGenotypesExcluded(c *check.C) {
	fnm := writeTempVCF(c, `##fileformat=VCFv4.2
#CHROM	POS	ID	REF	ALT	QUAL	FILTER	INFO	FORMAT	S1	S2	S3
chr1	100	.	A	T	.	.	.	GT	0/0	./.	1/1
`)
	in, err := readVCF(fnm, nil, 2, 0)
	c.Assert(err, check.IsNil)
	c.Assert(in.targets, check.HasLen, 1)
	c.Check(in.targets[0], check.DeepEquals, histogram{1, 0, 1})

	in.targets[0].normalize(3)
	c.Check(in.targets[0], check.DeepEquals, histogram{1.5, 0, 1.5})
}

func (s *vcfSuite) TestAllMissingSkipped(c *check.C) {
	fnm := writeTempVCF(c, testHeader+
		"chr1\t100\t.\tA\tT\t.\t.\t.\tGT\t./.\t./.\n")
	in, err := readVCF(fnm, nil, 2, 0)
	c.Assert(err, check.IsNil)
	c.Check(in.targets, check.HasLen, 0)
}

func (s *vcfSuite) TestPloidyMismatch(c *check.C) {
	fnm := writeTempVCF(c, testHeader+
		"chr1\t100\t.\tA\tT\t.\t.\t.\tGT\t0/1\t1/1\n")
	_, err := readVCF(fnm, nil, 4, 0)
	c.Check(err, check.ErrorMatches, `.*genotype "0/1" has 2 alleles, want ploidy 4`)
}

func (s *vcfSuite) TestMarkerCap(c *check.C) {
	fnm := writeTempVCF(c, testHeader+
		"chr1\t100\t.\tA\tT\t.\t.\t.\tGT\t0/0\t1/1\n"+
		"chr1\t200\t.\tC\tG\t.\t.\t.\tGT\t0/1\t0/1\n"+
		"chr1\t300\t.\tG\tA\t.\t.\t.\tGT\t1/1\t1/1\n")
	in, err := readVCF(fnm, nil, 2, 2)
	c.Assert(err, check.IsNil)
	c.Check(in.targets, check.HasLen, 2)
}

func (s *vcfSuite) TestContigFromRecords(c *check.C) {
	fnm := writeTempVCF(c, `##fileformat=VCFv4.2
#CHROM	POS	ID	REF	ALT	QUAL	FILTER	INFO	FORMAT	S1	S2
chr2	5	.	A	T	.	.	.	GT	0/0	0/1
chr3	9	.	A	T	.	.	.	GT	0/0	0/1
chr2	11	.	G	C	.	.	.	GT	1/1	0/1
`)
	in, err := readVCF(fnm, nil, 2, 0)
	c.Assert(err, check.IsNil)
	c.Check(in.contigs, check.DeepEquals, []string{"chr2", "chr3"})
}

func (s *vcfSuite) TestWriteShape(c *check.C) {
	in := &vcfInput{
		contigs: []string{"chr1"},
		variants: []variant{
			{chrom: "chr1", pos: 100, ref: "A", alt: "T"},
			{chrom: "chr1", pos: 200, ref: "C", alt: "G"},
		},
		targets: []histogram{{1, 0, 1}, {0, 2, 0}},
	}
	hm := &haplotypeMap{founders: 2, slots: [][]int{{0, 0}, {1, 1}, {0, 1}}}
	founders := []*bitset.BitSet{bitset.New(2), bitset.New(2)}
	founders[0].Set(1)

	var buf bytes.Buffer
	err := writeVCF("", &buf, in, hm, founders, 2)
	c.Assert(err, check.IsNil)

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	c.Assert(len(lines), check.Equals, 6)
	c.Check(lines[0], check.Equals, "##fileformat=VCFv4.2")
	c.Check(lines[1], check.Equals, `##FORMAT=<ID=GT,Number=1,Type=String,Description="Genotype">`)
	c.Check(lines[2], check.Equals, "##contig=<ID=chr1>")
	c.Check(lines[3], check.Equals, "#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\tSAMPLE_0\tSAMPLE_1\tSAMPLE_2")
	c.Check(lines[4], check.Equals, "chr1\t100\t0\tA\tT\t.\t.\t.\tGT\t0|0\t1|1\t0|1")
	c.Check(lines[5], check.Equals, "chr1\t200\t1\tC\tG\t.\t.\t.\tGT\t0|0\t0|0\t0|0")
}

// A written population parses back with the simulated dosage histograms.
func (s *vcfSuite) TestGzipRoundTrip(c *check.C) {
	in := &vcfInput{
		contigs:  []string{"chr1"},
		variants: []variant{{chrom: "chr1", pos: 100, ref: "A", alt: "T"}},
		targets:  []histogram{{1, 0, 1}},
	}
	hm := &haplotypeMap{founders: 2, slots: [][]int{{0, 0}, {1, 1}}}
	founders := []*bitset.BitSet{bitset.New(2)}
	founders[0].Set(0)

	fnm := c.MkDir() + "/out.vcf.gz"
	err := writeVCF(fnm, nil, in, hm, founders, 2)
	c.Assert(err, check.IsNil)

	back, err := readVCF(fnm, nil, 2, 0)
	c.Assert(err, check.IsNil)
	c.Assert(back.targets, check.HasLen, 1)
	c.Check(back.targets[0], check.DeepEquals, histogram{1, 0, 1})
	c.Check(back.variants[0].ref, check.Equals, "A")
}
