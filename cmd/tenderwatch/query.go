package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/TobiSchelling/tenderwatch/internal/database"
)

var closeExpiredCmd = &cobra.Command{
	Use:   "close-expired",
	Short: "Close open tenders whose deadline has passed",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		n, err := db.CloseExpired(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Closed %d expired tender(s)\n", n)
		return nil
	},
}

// --- stats command ---

var statsJSON bool

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show database statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.Stats(cmd.Context())
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}
		if statsJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(stats)
		}

		if db.Driver() == database.DriverSQLite {
			fmt.Printf("Database: %s\n\n", db.Path())
		} else {
			fmt.Printf("Database: %s\n\n", db.Driver())
		}
		fmt.Println("Tenders:")
		fmt.Printf("  Total: %d\n", stats.TotalTenders)
		fmt.Printf("  Active: %d\n", stats.ActiveTenders)
		fmt.Printf("  Closed: %d\n", stats.ClosedTenders)
		fmt.Printf("  Updated in the last 7 days: %d\n", stats.Recent7Days)
		fmt.Printf("  Average data quality: %.1f%%\n", stats.AvgDataQuality)
		fmt.Println("\nDocuments:")
		fmt.Printf("  Attachments: %d\n", stats.TotalAttachments)
		fmt.Printf("  Downloaded: %d\n", stats.DownloadedAttachments)
		fmt.Printf("  Extracted tenders: %d\n", stats.Level2Extracted)

		if len(stats.PlatformBreakdown) > 0 {
			fmt.Println("\nBy platform:")
			names := make([]string, 0, len(stats.PlatformBreakdown))
			for name := range stats.PlatformBreakdown {
				names = append(names, name)
			}
			sort.Slice(names, func(i, j int) bool {
				return stats.PlatformBreakdown[names[i]] > stats.PlatformBreakdown[names[j]]
			})
			for _, name := range names {
				fmt.Printf("  %s: %d\n", name, stats.PlatformBreakdown[name])
			}
		}
		return nil
	},
}

func init() {
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "Print as JSON")
}

// --- runs command ---

var (
	runsPlatform string
	runsLimit    int
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent platform runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		logs, err := db.RunLogs(cmd.Context(), runsPlatform, runsLimit)
		if err != nil {
			return err
		}
		if len(logs) == 0 {
			fmt.Println("No runs recorded yet. Start one with: tenderwatch run")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "START\tPLATFORM\tSTATUS\tFOUND\tNEW\tUPDATED\tDOCS\tEXTRACTED\tERRORS")
		for _, rl := range logs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%d\t%d\n",
				rl.RunStart, rl.PlatformName, rl.Status, rl.TendersFound, rl.TendersNew,
				rl.TendersUpdated, rl.AttachmentsDownloaded, rl.Level2Extracted, rl.ErrorsCount)
		}
		return w.Flush()
	},
}

func init() {
	runsCmd.Flags().StringVarP(&runsPlatform, "platform", "p", "", "Only runs of this platform")
	runsCmd.Flags().IntVarP(&runsLimit, "limit", "n", 20, "Maximum number of runs")
}

// --- tenders command ---

var (
	tenderFilter  database.TenderFilter
	tenderStatus  string
	minAmount     float64
	maxAmount     float64
	upcomingDays  int
	recentDays    int
	showExtracted string
)

var tendersCmd = &cobra.Command{
	Use:   "tenders",
	Short: "Search stored tenders",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		if showExtracted != "" {
			return printTender(cmd, db, showExtracted)
		}

		var tenders []database.Tender
		total := -1
		switch {
		case upcomingDays > 0:
			tenders, err = db.UpcomingDeadlines(ctx, upcomingDays)
		case recentDays > 0:
			tenders, err = db.RecentTenders(ctx, recentDays, tenderFilter.Platform)
		default:
			f := tenderFilter
			if tenderStatus != "" {
				st, perr := database.ParseStatus(tenderStatus)
				if perr != nil {
					return perr
				}
				f.Status = st
			}
			if cmd.Flags().Changed("min-amount") {
				f.MinAmount = &minAmount
			}
			if cmd.Flags().Changed("max-amount") {
				f.MaxAmount = &maxAmount
			}
			tenders, total, err = db.SearchTenders(ctx, f)
		}
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTATUS\tDEADLINE\tAMOUNT\tPLATFORM\tTITLE")
		for _, t := range tenders {
			amount := "-"
			if t.Amount != nil {
				amount = fmt.Sprintf("%.2f", *t.Amount)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				t.ID, t.Status, t.Deadline, amount, t.PlatformName, shorten(t.Title, 60))
		}
		if err := w.Flush(); err != nil {
			return err
		}
		if total >= 0 {
			fmt.Printf("\nShowing %d of %d\n", len(tenders), total)
		}
		return nil
	},
}

func init() {
	f := tendersCmd.Flags()
	f.StringVarP(&tenderFilter.Keyword, "search", "s", "", "Keyword in title or contracting authority")
	f.StringVar(&tenderFilter.Category, "category", "", "Works, Supplies or Services")
	f.StringVarP(&tenderFilter.Platform, "platform", "p", "", "Platform name")
	f.StringVar(&tenderStatus, "status", "", "Active, Updated or Closed")
	f.Float64Var(&minAmount, "min-amount", 0, "Minimum amount")
	f.Float64Var(&maxAmount, "max-amount", 0, "Maximum amount")
	f.IntVarP(&tenderFilter.Limit, "limit", "n", 20, "Page size")
	f.IntVar(&tenderFilter.Offset, "offset", 0, "Page offset")
	f.IntVar(&upcomingDays, "upcoming", 0, "Active tenders with a deadline in the next N days")
	f.IntVar(&recentDays, "recent", 0, "Tenders updated in the last N days")
	f.StringVar(&showExtracted, "show", "", "Show one tender with its attachments and extracted clauses")
}

func printTender(cmd *cobra.Command, db *database.DB, key string) error {
	ctx := cmd.Context()
	t, err := db.GetTender(ctx, key)
	if err != nil {
		return err
	}
	if t == nil {
		return fmt.Errorf("tender %s not found", key)
	}

	fmt.Printf("%s  [%s]\n%s\n", t.ID, t.Status, t.Title)
	fmt.Printf("  Platform: %s\n  URL: %s\n  Deadline: %s\n", t.PlatformName, t.URL, t.Deadline)
	if t.Amount != nil {
		fmt.Printf("  Amount: %.2f\n", *t.Amount)
	}
	fmt.Printf("  Data quality: %.1f%%\n", t.DataQualityScore)

	atts, err := db.AttachmentsForTender(ctx, key)
	if err != nil {
		return err
	}
	if len(atts) > 0 {
		fmt.Println("\nAttachments:")
		for _, a := range atts {
			line := fmt.Sprintf("  [%s] %s", a.Downloaded, a.FileName)
			if a.DownloadError != nil {
				line += " (" + *a.DownloadError + ")"
			}
			fmt.Println(line)
		}
	}

	ef, err := db.GetExtractedFields(ctx, key)
	if err != nil {
		return err
	}
	if ef != nil {
		fmt.Printf("\nExtracted clauses (confidence %.2f, %s):\n", ef.ConfidenceScore, ef.ExtractionDate)
		for _, c := range []struct{ label, text string }{
			{"Required qualifications", ef.RequiredQualifications},
			{"Evaluation criteria", ef.EvaluationCriteria},
			{"Process", ef.ProcessDescription},
			{"Delivery", ef.DeliveryMethods},
			{"Required documentation", ef.RequiredDocumentation},
		} {
			fmt.Printf("\n%s:\n%s\n", c.label, indent(c.text))
		}
	}
	return nil
}

// --- platforms command ---

var platformsCmd = &cobra.Command{
	Use:   "platforms",
	Short: "List configured platforms and their last successful run",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tKIND\tENABLED\tLAST SUCCESS\tSOURCE")
		for _, p := range cfg.Platforms {
			last := "never"
			rl, err := db.LastSuccessfulRun(cmd.Context(), p.Name)
			if err != nil {
				return err
			}
			if rl != nil {
				last = rl.RunStart.String()
			}
			source := p.URL
			if source == "" {
				source = p.File
			}
			fmt.Fprintf(w, "%s\t%s\t%t\t%s\t%s\n", p.Name, p.Kind, p.IsEnabled(), last, source)
		}
		return w.Flush()
	},
}

func shorten(s string, n int) string {
	if r := []rune(s); len(r) > n {
		return string(r[:n-3]) + "..."
	}
	return s
}

func indent(s string) string {
	return "  " + strings.ReplaceAll(s, "\n", "\n  ")
}
