package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/TobiSchelling/tenderwatch/internal/collect"
	"github.com/TobiSchelling/tenderwatch/internal/pipeline"
)

// --- run command ---

var (
	runPlatform string
	runAll      bool
	noDocs      bool
	noLevel2    bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Collect platforms and process their tenders",
	Long: "Collects tenders from one platform (--platform) or every enabled platform (--all, the default), " +
		"stores them, downloads their documents and extracts clauses.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if runPlatform != "" && runAll {
			return fmt.Errorf("--platform and --all are mutually exclusive")
		}
		ctx := cmd.Context()

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		var adapters []collect.Adapter
		if runPlatform != "" {
			a, err := collect.AdapterFor(cfg, runPlatform)
			if err != nil {
				return err
			}
			adapters = append(adapters, a)
		} else {
			reg, err := collect.NewRegistryFromConfig(cfg, false)
			if err != nil {
				return err
			}
			for _, name := range reg.Names() {
				a, _ := reg.Get(name)
				adapters = append(adapters, a)
			}
		}
		if len(adapters) == 0 {
			fmt.Println("No enabled platforms. Enable one in the config or pass --platform.")
			return nil
		}

		var downloader pipeline.Downloader
		if !noDocs {
			d, err := newDownloader(ctx, db)
			if err != nil {
				return err
			}
			downloader = d
		}
		var extractor pipeline.Extractor
		e, cleanup := optionalExtractor(ctx, db, noLevel2)
		defer cleanup()
		if e != nil {
			extractor = e
		}

		p := pipeline.New(db, downloader, extractor, cfg.Scraper.Workers)
		all, runErr := p.RunAll(ctx, adapters)

		for _, s := range all {
			fmt.Printf("\n%s: %s\n", s.Platform, s.Status)
			fmt.Printf("  Found: %d  New: %d  Updated: %d\n", s.Found, s.New, s.Updated)
			fmt.Printf("  Attachments downloaded: %d\n", s.Attachments)
			fmt.Printf("  Extracted: %d\n", s.Extracted)
			fmt.Printf("  Closed (expired): %d\n", s.Closed)
			fmt.Printf("  Errors: %d\n", s.Errors)
		}
		return runErr
	},
}

func init() {
	runCmd.Flags().StringVarP(&runPlatform, "platform", "p", "", "Run a single platform (may be disabled in config)")
	runCmd.Flags().BoolVar(&runAll, "all", false, "Run every enabled platform")
	runCmd.Flags().BoolVar(&noDocs, "no-docs", false, "Skip document downloads")
	runCmd.Flags().BoolVar(&noLevel2, "no-level2", false, "Skip clause extraction")
}

// --- download command ---

var (
	downloadTender   string
	downloadPlatform string
	downloadLimit    int
)

var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Download pending attachments",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		d, err := newDownloader(ctx, db)
		if err != nil {
			return err
		}

		keys := []string{downloadTender}
		if downloadTender == "" {
			keys, err = db.TendersWithPendingAttachments(ctx, downloadPlatform, downloadLimit)
			if err != nil {
				return err
			}
		}

		var total, downloaded, failed int
		for _, key := range keys {
			if ctx.Err() != nil {
				break
			}
			s, err := d.DownloadPending(ctx, key)
			if err != nil {
				return err
			}
			total += s.Total
			downloaded += s.Downloaded
			failed += s.Failed
		}

		fmt.Printf("Tenders: %d\n", len(keys))
		fmt.Printf("Attachments: %d (downloaded %d, failed %d)\n", total, downloaded, failed)
		return ctx.Err()
	},
}

func init() {
	downloadCmd.Flags().StringVarP(&downloadTender, "tender", "t", "", "Only this tender key")
	downloadCmd.Flags().StringVarP(&downloadPlatform, "platform", "p", "", "Only tenders of this platform")
	downloadCmd.Flags().IntVarP(&downloadLimit, "limit", "n", 0, "Maximum number of tenders (0 = all)")
}

// --- extract command ---

var (
	extractPlatform string
	extractLimit    int
	extractTender   string
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract clauses for tenders that have none yet",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		e, cleanup, err := newExtractor(ctx, db)
		if err != nil {
			return err
		}
		defer cleanup()

		if extractTender != "" {
			ef, err := e.ExtractOne(ctx, extractTender)
			if err != nil {
				return err
			}
			if ef == nil {
				fmt.Printf("No downloaded documents with text for %s\n", extractTender)
				return nil
			}
			fmt.Printf("Extracted %s (confidence %.2f)\n", extractTender, ef.ConfidenceScore)
			return nil
		}

		stats, err := e.BatchExtract(ctx, extractPlatform, extractLimit)
		fmt.Printf("Processed: %d  Success: %d  Failed: %d\n", stats.Processed, stats.Success, stats.Failed)
		return err
	},
}

func init() {
	extractCmd.Flags().StringVarP(&extractPlatform, "platform", "p", "", "Only tenders of this platform")
	extractCmd.Flags().IntVarP(&extractLimit, "limit", "n", 5, "Maximum number of tenders")
	extractCmd.Flags().StringVarP(&extractTender, "tender", "t", "", "Extract a single tender")
}
