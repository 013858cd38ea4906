package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/idgo"
)

func main() {
	ctx := context.Background()

	dir, err := os.MkdirTemp("", "idgo-example-")
	if err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(dir)

	domainSize := uint32(10_000_000)
	batch := 200_000

	alloc, err := idgo.Open(ctx, dir, domainSize,
		idgo.WithFlushThreshold(50_000),
	)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println("--- Allocate ---")
	fmt.Println("Domain:", domainSize)
	fmt.Println("Batch:", batch)

	ids := make([]uint32, 0, batch)

	start := time.Now()

	for range batch {
		id, err := alloc.Allocate(ctx)
		if err != nil {
			log.Fatal(err)
		}
		ids = append(ids, id)
	}

	end := time.Since(start)

	fmt.Printf("Seconds: %.2f (%.0f ids/s)\n\n", end.Seconds(), float64(batch)/end.Seconds())

	printStats(alloc.Stats())

	fmt.Println("--- Release ---")

	start = time.Now()

	for _, id := range ids[:batch/4] {
		if err := alloc.Release(ctx, id); err != nil {
			log.Fatal(err)
		}
	}

	end = time.Since(start)

	fmt.Printf("Released: %d\n", batch/4)
	fmt.Printf("Seconds: %.2f\n\n", end.Seconds())

	printStats(alloc.Stats())

	fmt.Println("--- Reopen ---")

	if err := alloc.Close(ctx); err != nil {
		log.Fatal(err)
	}

	start = time.Now()

	alloc, err = idgo.Open(ctx, dir, domainSize, idgo.WithFlushThreshold(50_000))
	if err != nil {
		log.Fatal(err)
	}

	end = time.Since(start)

	fmt.Printf("Recovered: %d ids\n", alloc.TotalAllocated())
	fmt.Printf("Seconds: %.2f\n\n", end.Seconds())

	printStats(alloc.Stats())

	if err := alloc.Close(ctx); err != nil {
		log.Fatal(err)
	}

	fmt.Println("--- Sharded ---")

	sharded, err := idgo.NewSharded(ctx, domainSize,
		idgo.WithNumShards(8),
		idgo.WithFlushThreshold(50_000),
	)
	if err != nil {
		log.Fatal(err)
	}

	start = time.Now()

	g, gctx := errgroup.WithContext(ctx)
	for range 8 {
		g.Go(func() error {
			for range batch / 8 {
				if _, err := sharded.Allocate(gctx); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Fatal(err)
	}

	end = time.Since(start)

	fmt.Printf("Shards: %d\n", sharded.NumShards())
	fmt.Printf("Seconds: %.2f (%.0f ids/s)\n\n", end.Seconds(), float64(batch)/end.Seconds())

	printStats(sharded.Stats())

	if err := sharded.Close(ctx); err != nil {
		log.Fatal(err)
	}
}

func printStats(st idgo.Stats) {
	fmt.Println("Allocated:", st.TotalAllocated)
	fmt.Println("Hot:", st.HotCount)
	fmt.Println("Cold:", st.ColdCount)
	fmt.Println("Flushes:", st.Flushes)
	fmt.Println("Generation:", st.ColdGeneration)
	fmt.Println()
}
