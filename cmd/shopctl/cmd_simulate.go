package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tradepost.ai/internal/catalogs"
	"tradepost.ai/internal/config"
	"tradepost.ai/internal/settlement"
	"tradepost.ai/internal/shop"
	"tradepost.ai/internal/tuning"
)

const (
	simBuyerSlots     = 36
	simContainerSlots = 27
)

func (a *app) simulateCmd() *cobra.Command {
	var (
		configDir  string
		tradeIndex int
		buyer      []string
		containers []string
	)
	cmd := &cobra.Command{
		Use:   "simulate <trader-ref>",
		Short: "Dry-run a purchase against a shop with a scripted buyer and containers",
		Long: `simulate runs the settlement engine against the stored shop bound to
trader-ref. The trader stands at the origin; containers are given relative to it
as x,y,z:ITEM:COUNT and the buyer's inventory as ITEM:COUNT. Nothing is written
to the store.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := catalogs.Load(configDir)
			if err != nil {
				return err
			}
			a.log.Debug("item catalog loaded",
				zap.Int("items", len(items.Palette)),
				zap.String("palette_digest", items.PaletteDigest),
				zap.String("defs_digest", items.DefsDigest))
			world := newSimWorld(args[0])
			for _, spec := range containers {
				if err := world.addStack(spec, items); err != nil {
					return err
				}
			}
			inv := settlement.NewSlotInventory(simBuyerSlots)
			for _, spec := range buyer {
				st, err := parseStack(spec)
				if err != nil {
					return err
				}
				if left := settlement.AddItem(inv, st.Item, st.Count, items.MaxStackSize(st.Item)); left > 0 {
					return fmt.Errorf("buyer inventory cannot hold %s", spec)
				}
			}
			b := &simBuyer{inv: inv}

			return a.withStore(func(s shop.Store) error {
				reg := prometheus.NewRegistry()
				eng, err := settlement.NewEngine(settlement.Deps{
					Store:      s,
					Items:      items,
					Traders:    world,
					Scanner:    world,
					Search:     a.searchConfig(),
					Logger:     a.log,
					Registerer: reg,
				})
				if err != nil {
					return err
				}
				res := eng.Purchase(settlement.PurchaseRequest{TraderRef: args[0], TradeIndex: tradeIndex, Buyer: b})

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "catalog: %d items, defs %s\n", len(items.Palette), shortDigest(items.DefsDigest))
				fmt.Fprintf(out, "status: %s\n", res.Status)
				if res.Message != "" {
					fmt.Fprintf(out, "message: %s\n", res.Message)
				}
				if res.Status == settlement.StatusOK {
					fmt.Fprintf(out, "received: %d %s, dropped: %d\n", res.Received, res.Trade.OutputItem, res.Dropped)
				}
				for i := 0; i < inv.Len(); i++ {
					if st := inv.Slot(i); !st.Empty() {
						fmt.Fprintf(out, "  buyer[%d] %s x%d\n", i, st.Item, st.Count)
					}
				}
				return nil
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&configDir, "config-dir", "./configs", "directory holding items.json")
	f.IntVar(&tradeIndex, "trade", 0, "index into the shop's trade list")
	f.StringArrayVar(&buyer, "buyer", nil, "buyer stack ITEM:COUNT (repeatable)")
	f.StringArrayVar(&containers, "container", nil, "container stack x,y,z:ITEM:COUNT (repeatable)")
	return cmd
}

// searchConfig maps the trade settings onto the engine, loading tuning.yaml
// for dynamic mode.
func (a *app) searchConfig() settlement.SearchConfig {
	sc := settlement.SearchConfig{
		Mode:          a.cfg.Trade.DistanceMode,
		FixedDistance: a.cfg.Trade.FixedDistance,
		MaxContainers: a.cfg.Trade.MaxContainers,
	}
	if sc.Mode != config.DistanceDynamic {
		return sc
	}
	t, err := tuning.Load(a.cfg.Trade.TuningFile)
	if err != nil {
		a.log.Warn("tuning unavailable, using default search radii", zap.String("path", a.cfg.Trade.TuningFile), zap.Error(err))
		return sc
	}
	sc.Tuning = &t.Trade
	return sc
}

func shortDigest(d string) string {
	if len(d) > 12 {
		return d[:12]
	}
	return d
}

func parseStack(spec string) (settlement.ItemStack, error) {
	item, count, ok := strings.Cut(spec, ":")
	if !ok || strings.TrimSpace(item) == "" {
		return settlement.ItemStack{}, fmt.Errorf("bad stack %q (want ITEM:COUNT)", spec)
	}
	n, err := strconv.Atoi(count)
	if err != nil || n <= 0 {
		return settlement.ItemStack{}, fmt.Errorf("bad stack count in %q", spec)
	}
	return settlement.ItemStack{Item: strings.TrimSpace(item), Count: n}, nil
}

type simWorld struct {
	trader     string
	containers map[settlement.BlockPos]*settlement.SlotInventory
}

func newSimWorld(trader string) *simWorld {
	return &simWorld{trader: trader, containers: map[settlement.BlockPos]*settlement.SlotInventory{}}
}

func (w *simWorld) TraderPosition(ref string) (settlement.Vec3, bool) {
	if ref != w.trader {
		return settlement.Vec3{}, false
	}
	return settlement.BlockPos{}.Center(), true
}

func (w *simWorld) ContainerAt(p settlement.BlockPos) (settlement.Inventory, bool) {
	inv, ok := w.containers[p]
	if !ok {
		return nil, false
	}
	return inv, true
}

func (w *simWorld) addStack(spec string, items *catalogs.ItemCatalog) error {
	pos, stack, ok := strings.Cut(spec, ":")
	if !ok {
		return fmt.Errorf("bad container %q (want x,y,z:ITEM:COUNT)", spec)
	}
	parts := strings.Split(pos, ",")
	if len(parts) != 3 {
		return fmt.Errorf("bad container position %q", pos)
	}
	var xyz [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return fmt.Errorf("bad container position %q: %w", pos, err)
		}
		xyz[i] = n
	}
	st, err := parseStack(stack)
	if err != nil {
		return err
	}
	bp := settlement.BlockPos{X: xyz[0], Y: xyz[1], Z: xyz[2]}
	inv, ok := w.containers[bp]
	if !ok {
		inv = settlement.NewSlotInventory(simContainerSlots)
		w.containers[bp] = inv
	}
	if left := settlement.AddItem(inv, st.Item, st.Count, items.MaxStackSize(st.Item)); left > 0 {
		return fmt.Errorf("container %s cannot hold %s", pos, stack)
	}
	return nil
}

type simBuyer struct {
	inv     *settlement.SlotInventory
	dropped []settlement.ItemStack
}

func (b *simBuyer) Inventory() settlement.Inventory { return b.inv }

func (b *simBuyer) Drop(s settlement.ItemStack) { b.dropped = append(b.dropped, s) }

func (b *simBuyer) NotifyPickup(settlement.ItemStack) {}
