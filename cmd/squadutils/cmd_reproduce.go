package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"squadutils/internal/artifact"
	"squadutils/internal/invocation"
	"squadutils/internal/logging"
	"squadutils/internal/reproducer"
)

var reproduceFlags struct {
	search          searchOptions
	local           bool
	plan            bool
	output          string
	command         string
	ltpTests        []string
	customOutput    string
	commandsTimeout int
}

var reproduceCmd = &cobra.Command{
	Use:   "reproduce",
	Short: "Download the reproducer of the most recent matching test run",
	Long: "Download the reproducer of the most recent matching test run.\n\n" +
		"With --command or --ltp-tests the reproducer is also rewritten to run that\n" +
		"command instead of the original suite and saved to --custom-output.",
	RunE: runReproduce,
}

func init() {
	f := reproduceCmd.Flags()
	reproduceFlags.search.register(f, "device")
	f.BoolVar(&reproduceFlags.local, "local", false, "Fetch the tuxrun reproducer for a local runtime")
	f.BoolVar(&reproduceFlags.plan, "plan", false, "Fetch the tuxsuite plan instead of the reproducer")
	f.StringVarP(&reproduceFlags.output, "output", "o", "", "Where to save the reproducer (default: artifact name)")
	f.StringVar(&reproduceFlags.command, "command", "", "Custom command to run in place of the suite")
	f.StringSliceVar(&reproduceFlags.ltpTests, "ltp-tests", nil, "LTP tests to run in place of the suite")
	f.StringVar(&reproduceFlags.customOutput, "custom-output", "custom_reproducer.sh", "Where to save the customised reproducer")
	f.IntVar(&reproduceFlags.commandsTimeout, "commands-timeout", invocation.DefaultCommandsTimeout, "Timeout in minutes for the custom command")

	_ = reproduceCmd.MarkFlagRequired("device")
	_ = reproduceCmd.MarkFlagRequired("suite")
	_ = reproduceCmd.MarkFlagRequired("build-names")
	reproduceCmd.MarkFlagsMutuallyExclusive("local", "plan")
	reproduceCmd.MarkFlagsMutuallyExclusive("command", "ltp-tests")
}

func runReproduce(cmd *cobra.Command, _ []string) error {
	opts := &reproduceFlags.search
	if err := opts.resolve(); err != nil {
		return err
	}
	if len(opts.environments) != 1 || len(opts.suites) != 1 {
		return fmt.Errorf("reproduce takes exactly one --device and one --suite")
	}
	completion, err := opts.completionPredicate()
	if err != nil {
		return err
	}
	kind, err := reproducer.KindFor(reproduceFlags.local, reproduceFlags.plan)
	if err != nil {
		return err
	}

	command := reproduceFlags.command
	commandSet := []string{command}
	if len(reproduceFlags.ltpTests) > 0 {
		command = invocation.LTPCommand(reproduceFlags.ltpTests)
		commandSet = reproduceFlags.ltpTests
	}
	if command != "" && kind == reproducer.Plan {
		return fmt.Errorf("plans cannot be customised; drop --plan or --command")
	}

	client, err := newClient()
	if err != nil {
		return err
	}
	logger := logging.New("reproducer")
	svc := reproducer.NewService(client,
		reproducer.WithParallel(opts.parallel),
		reproducer.WithLogger(logger),
		reproducer.WithFetcher(artifact.New(artifact.WithLogger(logger))),
	)
	res, err := svc.Get(cmd.Context(), reproducer.Request{
		Group:           settings.Squad.Group,
		Project:         opts.project,
		Environment:     opts.environments[0],
		Suite:           opts.suites[0],
		BuildNames:      opts.buildNames,
		Count:           opts.count,
		AllowUnfinished: opts.allowUnfinished,
		Completion:      completion,
		Kind:            kind,
	})
	if err != nil {
		return err
	}

	if kind == reproducer.Plan {
		plan, err := invocation.ParsePlan([]byte(res.Text))
		if err != nil {
			return fmt.Errorf("retrieved plan is not valid: %w", err)
		}
		logger.Debug("retrieved plan", "name", plan.Name, "jobs", len(plan.Jobs))
	}

	output := reproduceFlags.output
	if output == "" {
		output = filepath.Base(res.Location)
	}
	if err := artifact.Save(output, []byte(res.Text), 0o755); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Reproducer:   %s (from %s)\n", output, res.Location)
	fmt.Fprintf(out, "Build name:   %s\n", res.BuildName)
	fmt.Fprintf(out, "Git describe: %s\n", res.GitDescribe)

	if command == "" {
		return nil
	}
	_, err = reproducer.Custom(res.Text, invocation.RewriteOptions{
		Suite:           opts.suites[0],
		Command:         command,
		CommandSet:      commandSet,
		CommandsTimeout: reproduceFlags.commandsTimeout,
	}, kind, reproduceFlags.customOutput)
	if err != nil {
		return fmt.Errorf("customise reproducer: %w", err)
	}
	fmt.Fprintf(out, "Custom:       %s\n", reproduceFlags.customOutput)
	return nil
}
