package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/joshuapare/slabkit/internal/format"
	"github.com/joshuapare/slabkit/slab"
)

func init() {
	rootCmd.AddCommand(newInfoCmd())
}

func newInfoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info <store>",
		Short: "Report header fields and per-size-class usage",
		Long: `The info command opens a slab store and reports its header (logical
length, reference number) together with live and free chunk counts for every
size class in use.

Example:
  slabctl info data.slab
  slabctl info data.slab --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInfo(args)
		},
	}
	return cmd
}

// classInfo summarizes one size class.
type classInfo struct {
	Power     int   `json:"power"`
	ChunkSize int64 `json:"chunk_size"`
	Live      int   `json:"live"`
	Free      int   `json:"free"`
	FreeList  int   `json:"free_list"`
	Bytes     int64 `json:"bytes"`
}

// storeInfo is the info command's result.
type storeInfo struct {
	File            string      `json:"file"`
	FileSize        int64       `json:"file_size"`
	Length          int64       `json:"length"`
	ReferenceNumber uint64      `json:"reference_number"`
	Chunks          int         `json:"chunks"`
	Classes         []classInfo `json:"classes"`
}

func collectInfo(path string) (*storeInfo, error) {
	a, err := openStore(path)
	if err != nil {
		return nil, err
	}
	defer a.Close()

	info := &storeInfo{File: path, Length: a.SizeInBytes()}
	if st, err := os.Stat(path); err == nil {
		info.FileSize = st.Size()
	}
	if info.ReferenceNumber, err = a.ReferenceNumber(); err != nil {
		return nil, err
	}

	byPower := map[int]*classInfo{}
	err = a.Walk(func(ci slab.ChunkInfo) error {
		c := byPower[ci.Power]
		if c == nil {
			c = &classInfo{Power: ci.Power, ChunkSize: format.PayloadSize(ci.Power)}
			byPower[ci.Power] = c
		}
		if ci.Live {
			c.Live++
		} else {
			c.Free++
		}
		c.Bytes += format.RecordSize(ci.Power)
		info.Chunks++
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk store: %w", err)
	}

	for p := format.MinPower; p <= format.MaxAllocPower; p++ {
		c := byPower[p]
		if c == nil {
			continue
		}
		fps, err := a.FreeList(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read free list 2^%d: %w", p, err)
		}
		c.FreeList = len(fps)
		info.Classes = append(info.Classes, *c)
	}
	return info, nil
}

func runInfo(args []string) error {
	info, err := collectInfo(args[0])
	if err != nil {
		return err
	}

	if jsonOut {
		return printJSON(info)
	}

	printInfo("\nStore Information:\n")
	printInfo("  File: %s\n", info.File)
	printInfo("  File size: %s\n", humanize.IBytes(uint64(info.FileSize)))
	printInfo("  Length: %s (%d bytes)\n", humanize.IBytes(uint64(info.Length)), info.Length)
	printInfo("  Reference number: %d\n", info.ReferenceNumber)
	printInfo("  Chunks: %s\n", humanize.Comma(int64(info.Chunks)))

	if len(info.Classes) == 0 {
		printInfo("\nNo chunks allocated.\n")
		return nil
	}
	printInfo("\nSize classes:\n")
	printInfo("  %-10s %8s %8s %10s %12s\n", "CLASS", "LIVE", "FREE", "FREE LIST", "BYTES")
	for _, c := range info.Classes {
		printInfo("  %-10s %8d %8d %10d %12s\n",
			humanize.IBytes(uint64(c.ChunkSize)), c.Live, c.Free, c.FreeList, humanize.IBytes(uint64(c.Bytes)))
	}
	return nil
}
