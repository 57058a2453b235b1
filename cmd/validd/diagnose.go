package main

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"validd/internal/cache"
	"validd/internal/integrity"
	"validd/internal/manager"
	"validd/internal/sysmem"
)

// diagnoseCmd checks the deployment without starting the server: memory
// headroom, per-descriptor artifact integrity and fit, cache contents, and
// optionally a real probe load of the best candidate.
func diagnoseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diagnose",
		Short: "Check memory, model artifacts, and the decision cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := buildLogger(cmd)

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			profile := cfg.Profile.Defaults()
			out := cmd.OutOrStdout()

			availBytes := sysmem.Meminfo{}.AvailableBytes()
			availMB := int(availBytes/(1024*1024)) - profile.MemoryMarginMB
			fmt.Fprintf(out, "system: %d CPUs, %.2f GB available (%d MB usable after %d MB margin)\n",
				runtime.NumCPU(), float64(availBytes)/(1<<30), availMB, profile.MemoryMarginMB)

			checker := integrity.Checker{MinSizeBytes: profile.MinArtifactBytes}
			failures := 0
			for _, d := range cfg.Models {
				var sizeGB float64
				if fi, err := os.Stat(d.Path); err == nil {
					sizeGB = float64(fi.Size()) / (1 << 30)
				}
				verdict := "ok"
				if err := checker.Check(d.Path); err != nil {
					verdict = err.Error()
					failures++
				}
				fits := "fits"
				if d.MemoryRequirementMB > availMB {
					fits = fmt.Sprintf("needs %d MB, does not fit", d.MemoryRequirementMB)
					failures++
				}
				fmt.Fprintf(out, "model %-12s %6.2f GB  artifact: %-40s memory: %s\n",
					d.ID, sizeGB, verdict, fits)
			}

			if cfg.CacheDir != "" {
				store, err := cache.Open(cfg.CacheDir, cfg.CachePersistFloor)
				if err != nil {
					fmt.Fprintf(out, "cache: cannot open (%v)\n", err)
					failures++
				} else {
					defer store.Close()
					counts, err := store.CountByFieldType()
					if err != nil {
						fmt.Fprintf(out, "cache: cannot count (%v)\n", err)
					} else if len(counts) == 0 {
						fmt.Fprintln(out, "cache: empty")
					} else {
						for ft, n := range counts {
							fmt.Fprintf(out, "cache: %-12s %d decisions\n", ft, n)
						}
					}
				}
			}

			probe, _ := cmd.Flags().GetBool("probe")
			if probe {
				mgr := manager.NewWithConfig(manager.ManagerConfig{
					Descriptors: cfg.Models,
					Affinity:    cfg.Affinity,
					Fallback:    cfg.Fallback,
					Profile:     cfg.Profile,
					Logger:      log,
				})
				desc, err := mgr.SelectCandidate("")
				if err != nil {
					fmt.Fprintf(out, "probe: no candidate (%v)\n", err)
					failures++
				} else if err := mgr.EnsureLoaded(context.Background(), desc); err != nil {
					fmt.Fprintf(out, "probe: load of %s failed (%v)\n", desc.ID, err)
					failures++
				} else {
					st := mgr.Status()
					fmt.Fprintf(out, "probe: loaded %s in %.0f ms\n", st.ModelID, st.LoadTimeMs)
					mgr.Unload()
				}
			}

			if failures > 0 {
				return fmt.Errorf("%d problem(s) found", failures)
			}
			fmt.Fprintln(out, "all checks passed")
			return nil
		},
	}
	cmd.Flags().String("config", "", "Path to config file (.yaml/.json/.toml)")
	cmd.Flags().Bool("probe", false, "Attempt a real load of the best-fitting model")
	return cmd
}
