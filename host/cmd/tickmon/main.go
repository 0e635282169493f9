// Command tickmon queries the time driver of a running board over its
// diagnostic port.
//
//	tickmon -device /dev/ttyACM0 stats
//	tickmon -device /dev/ttyACM0          (interactive)
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/shlex"

	"tickcore/host/link"
	"tickcore/host/serial"
)

var (
	device  = flag.String("device", "/dev/ttyACM0", "Serial device path")
	baud    = flag.Int("baud", 115200, "Baud rate (ignored for USB CDC)")
	timeout = flag.Duration("timeout", time.Second, "Reply timeout")
)

func main() {
	flag.Parse()

	cfg := serial.DefaultConfig(*device)
	cfg.Baud = *baud
	port, err := serial.Open(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	port.Flush()
	c := link.New(port, *timeout)
	defer c.Close()

	if flag.NArg() > 0 {
		if err := run(c, flag.Args()); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	fmt.Printf("Connected to %s. Type 'help' for commands.\n", *device)
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		args, err := shlex.Split(scanner.Text())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			continue
		}
		if len(args) == 0 {
			continue
		}
		if args[0] == "quit" || args[0] == "exit" || args[0] == "q" {
			return
		}
		if err := run(c, args); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
	}
	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "Error reading input: %v\n", err)
		os.Exit(1)
	}
}

func run(c *link.Client, args []string) error {
	switch args[0] {
	case "help", "?":
		printHelp()

	case "clock":
		t, err := c.Clock()
		if err != nil {
			return err
		}
		fmt.Printf("clock: %d\n", t)

	case "uptime":
		u, err := c.Uptime()
		if err != nil {
			return err
		}
		fmt.Printf("uptime: %s\n", link.FormatUptime(u))

	case "stats":
		st, err := c.Stats()
		if err != nil {
			return err
		}
		link.PrintStats(os.Stdout, st)

	case "config":
		cfg, err := c.Config()
		if err != nil {
			return err
		}
		link.PrintConfig(os.Stdout, cfg)

	case "timing":
		events, err := c.Timing()
		if err != nil {
			return err
		}
		fmt.Printf("%d events, oldest first\n", len(events))
		for _, e := range events {
			fmt.Println("  " + link.FormatEvent(e))
		}

	case "watch":
		// watch [count] [interval]
		count, interval := 10, time.Second
		if len(args) > 1 {
			n, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("watch: bad count %q", args[1])
			}
			count = n
		}
		if len(args) > 2 {
			d, err := time.ParseDuration(args[2])
			if err != nil {
				return fmt.Errorf("watch: %w", err)
			}
			interval = d
		}
		return watch(c, count, interval)

	default:
		return fmt.Errorf("unknown command %q (type 'help')", args[0])
	}
	return nil
}

// watch samples the board clock against the host clock to show drift
func watch(c *link.Client, count int, interval time.Duration) error {
	cfg, err := c.Config()
	if err != nil {
		return err
	}
	first, err := c.Clock()
	if err != nil {
		return err
	}
	start := time.Now()
	for i := 0; i < count; i++ {
		time.Sleep(interval)
		t, err := c.Clock()
		if err != nil {
			return err
		}
		host := time.Since(start)
		board := (t - first).Duration(cfg.TickHz)
		fmt.Printf("host %-12s board %-12s drift %s\n", host.Round(time.Millisecond),
			board.Round(time.Millisecond), (board - host).Round(time.Microsecond))
	}
	return nil
}

func printHelp() {
	fmt.Println("\nAvailable commands:")
	fmt.Println("  clock                 - Current board tick")
	fmt.Println("  uptime                - Time since boot")
	fmt.Println("  stats                 - Timer and wake counters")
	fmt.Println("  config                - Time driver configuration")
	fmt.Println("  timing                - Dump the timing trace")
	fmt.Println("  watch [n] [interval]  - Compare board and host clocks")
	fmt.Println("  quit/exit/q           - Exit")
	fmt.Println()
}
