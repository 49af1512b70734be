// Binary ppo trains a PPO agent on the cart-pole environment and
// tracks the episodic returns of training.
package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/gorl/ppo/agent/ppo"
	"github.com/gorl/ppo/driver"
	"github.com/gorl/ppo/environment"
	"github.com/gorl/ppo/environment/cartpole"
	"github.com/gorl/ppo/initwfn"
	"github.com/gorl/ppo/metrics"
	"github.com/gorl/ppo/network"
	"github.com/gorl/ppo/render"
	"github.com/gorl/ppo/rollout"
	"github.com/gorl/ppo/solver"
	"github.com/gorl/ppo/utils/progressbar"
)

type trainFlags struct {
	collections  int
	workers      int
	horizon      int
	epochs       int
	numMinibatch int

	discount     float64
	lambda       float64
	epsilonStart float64
	epsilonEnd   float64
	valueCoef    float64
	entropyCoef  float64
	stepSize     float64

	hidden []int
	seed   uint64

	outDir      string
	renderDir   string
	renderSteps int
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "ppo",
		Short: "Train PPO agents on classic control environments",
	}

	// Optional environment file holding defaults such as PPO_OUT_DIR
	godotenv.Load(".env")

	flags := &trainFlags{}
	trainCmd := &cobra.Command{
		Use:   "train",
		Short: "Train a PPO agent on cart-pole",
		RunE: func(cmd *cobra.Command, args []string) error {
			return train(flags)
		},
	}

	trainCmd.Flags().IntVar(&flags.collections, "collections", 250,
		"number of collect-then-fit iterations")
	trainCmd.Flags().IntVar(&flags.workers, "workers", 8,
		"number of parallel environments")
	trainCmd.Flags().IntVar(&flags.horizon, "horizon", 128,
		"timesteps per worker per collection")
	trainCmd.Flags().IntVar(&flags.epochs, "epochs", 4,
		"fitting epochs per collection")
	trainCmd.Flags().IntVar(&flags.numMinibatch, "minibatches", 4,
		"minibatches per epoch, must divide horizon")
	trainCmd.Flags().Float64Var(&flags.discount, "discount", 0.99,
		"reward discount rate")
	trainCmd.Flags().Float64Var(&flags.lambda, "lambda", 0.95,
		"GAE decay rate")
	trainCmd.Flags().Float64Var(&flags.epsilonStart, "epsilon-start", 0.2,
		"initial ratio clipping range")
	trainCmd.Flags().Float64Var(&flags.epsilonEnd, "epsilon-end", 0.1,
		"final ratio clipping range")
	trainCmd.Flags().Float64Var(&flags.valueCoef, "value-coef", 0.5,
		"critic loss coefficient")
	trainCmd.Flags().Float64Var(&flags.entropyCoef, "entropy-coef", 0.01,
		"entropy bonus coefficient")
	trainCmd.Flags().Float64Var(&flags.stepSize, "step-size", 3e-4,
		"Adam step size")
	trainCmd.Flags().IntSliceVar(&flags.hidden, "hidden", []int{64, 64},
		"hidden layer sizes of the shared body")
	trainCmd.Flags().Uint64Var(&flags.seed, "seed", 42, "random seed")
	trainCmd.Flags().StringVar(&flags.outDir, "out",
		envOr("PPO_OUT_DIR", "results"), "directory for tracker data")
	trainCmd.Flags().StringVar(&flags.renderDir, "render-dir", "",
		"if set, render the collected experience here during training")
	trainCmd.Flags().IntVar(&flags.renderSteps, "render-steps", 500,
		"maximum frames to render")

	rootCmd.AddCommand(trainCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func train(flags *trainFlags) error {
	config := ppo.Config{
		Workers:      flags.workers,
		Horizon:      flags.horizon,
		Features:     cartpole.ObservationSize,
		Discount:     flags.discount,
		Lambda:       flags.lambda,
		Epochs:       flags.epochs,
		NumMinibatch: flags.numMinibatch,
		EpsilonStart: flags.epsilonStart,
		EpsilonEnd:   flags.epsilonEnd,
		ValueCoef:    flags.valueCoef,
		EntropyCoef:  flags.entropyCoef,
		Seed:         flags.seed,
		ShowProgress: true,
		Render:       flags.renderDir != "",
	}
	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %v", err)
	}

	envs, err := environment.NewVector(flags.workers,
		func(w int) (environment.Environment, error) {
			return cartpole.New(flags.seed + uint64(w)), nil
		})
	if err != nil {
		return err
	}

	activations := make([]*network.Activation, len(flags.hidden))
	for i := range activations {
		activations[i] = network.TanH()
	}
	init, err := initwfn.NewGlorotN(1.0)
	if err != nil {
		return err
	}
	net, err := network.NewCategoricalActorCritic(
		cartpole.ObservationSize,
		cartpole.NumActions,
		flags.workers,
		config.BatchSteps(),
		flags.hidden,
		activations,
		init,
		flags.seed,
	)
	if err != nil {
		return err
	}
	defer net.Close()

	adam, err := solver.NewDefaultAdam(flags.stepSize, config.BatchSize())
	if err != nil {
		return err
	}

	if err := os.MkdirAll(flags.outDir, 0755); err != nil {
		return fmt.Errorf("could not create output directory: %v", err)
	}
	run := uuid.New().String()
	returnsFile := filepath.Join(flags.outDir, run+"_returns.bin")
	lengthsFile := filepath.Join(flags.outDir, run+"_lengths.bin")
	log.Printf("run %v: tracking returns to %v", run, returnsFile)

	agent, err := ppo.New(
		driver.NewSync(envs, net),
		net,
		adam,
		config,
		metrics.NewReturn(returnsFile),
		metrics.NewEpisodeLength(lengthsFile),
	)
	if err != nil {
		return err
	}

	if config.Render {
		if err := os.MkdirAll(flags.renderDir, 0755); err != nil {
			return fmt.Errorf("could not create render directory: %v", err)
		}
		agent.SetRenderer(&rolloutRenderer{
			dir:       flags.renderDir,
			cartpole:  render.NewCartpole(600, 400),
			pbar:      progressbar.NewManualProgressBar(65, flags.renderSteps),
			maxFrames: flags.renderSteps,
		})
	}

	if err := agent.Train(flags.collections); err != nil {
		return err
	}
	log.Printf("run %v: training finished, final losses: %+v", run,
		agent.Losses())
	return nil
}

// rolloutRenderer draws the first worker's observations of each
// collection as PNG frames, up to a fixed frame budget.
type rolloutRenderer struct {
	dir       string
	cartpole  *render.Cartpole
	pbar      *progressbar.ManualProgressBar
	frame     int
	maxFrames int
}

func (r *rolloutRenderer) Render(exp *rollout.Experience) error {
	for t := 0; t < exp.Horizon && r.frame < r.maxFrames; t++ {
		// Observations are [x, dx/dt, θ, dθ/dt]
		obs := exp.WorkerObs(0, t)
		name := filepath.Join(r.dir,
			fmt.Sprintf("frame_%06d.png", r.frame))
		if err := r.cartpole.Save(obs[0], obs[2], name); err != nil {
			return fmt.Errorf("render: could not save frame %v: %v",
				r.frame, err)
		}
		r.frame++
		r.pbar.Increment()
		r.pbar.Display()
	}
	return nil
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
