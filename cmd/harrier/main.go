package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"text/tabwriter"

	"github.com/hive-corporation/harrier/internal/core/domain"
	"github.com/hive-corporation/harrier/internal/extract"
)

func main() {
	targetFile := flag.String("file", "", "file to scan (defaults to stdin)")
	asJSON := flag.Bool("json", false, "emit JSON instead of a table")
	keepPrivate := flag.Bool("private-ips", false, "keep private and reserved IP addresses")
	flag.Parse()

	var input io.Reader = os.Stdin
	source := "stdin"
	if *targetFile != "" {
		file, err := os.Open(*targetFile)
		if err != nil {
			log.Fatalf("❌ error reading file: %v", err)
		}
		defer file.Close()
		input = file
		source = *targetFile
	}

	data, err := io.ReadAll(input)
	if err != nil {
		log.Fatalf("❌ error reading input: %v", err)
	}

	cfg := extract.DefaultConfig()
	cfg.ExcludePrivateIPs = !*keepPrivate
	extractor := extract.NewExtractor(cfg, nil)

	iocs := extractor.ExtractFrom(string(data), source, domain.SourceText)
	if len(iocs) == 0 {
		fmt.Println("no indicators found")
		return
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(iocs); err != nil {
			log.Fatalf("❌ error encoding output: %v", err)
		}
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TYPE\tVALUE\tCONFIDENCE")
	for _, ioc := range iocs {
		fmt.Fprintf(w, "%s\t%s\t%s\n", ioc.Type, ioc.Value, ioc.Confidence)
	}
	w.Flush()
	fmt.Printf("\n%d indicator(s) found\n", len(iocs))
}
