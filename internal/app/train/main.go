package train

import (
	"context"
	"math/rand"
	"time"

	"github.com/airenas/sumtrainer/internal/pkg/cmdapp"
	"github.com/airenas/sumtrainer/internal/pkg/distribute"
	"github.com/airenas/sumtrainer/internal/pkg/messages"
	"github.com/airenas/sumtrainer/internal/pkg/metrics"
	"github.com/airenas/sumtrainer/internal/pkg/model"
	"github.com/airenas/sumtrainer/internal/pkg/mongo"
	"github.com/airenas/sumtrainer/internal/pkg/optimizer"
	"github.com/airenas/sumtrainer/internal/pkg/rabbit"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var appName = "News Summarization Trainer"

var rootCmd = &cobra.Command{
	Use:   "sumTrainer",
	Short: appName,
	Long:  `Trains the transformer model mapping news articles to their abstracts`,
	Run:   run,
}

func init() {
	cmdapp.InitApplication(rootCmd)
	f := rootCmd.PersistentFlags()
	f.Int("encoder_max_len", 2000, "Document length after padding/truncating")
	f.Int("decoder_max_len", 216, "Summary length after padding/truncating")
	f.Int("batch_size", 32, "Global batch size")
	f.Int("num_layers", 4, "Encoder and decoder layers")
	f.Int("d_model", 128, "Model width")
	f.Int("dff", 2048, "Feed forward hidden width")
	f.Int("num_heads", 8, "Attention heads")
	f.Int("encoder_max_vocab", 100000, "Document vocabulary size, -1 - no limit")
	f.Int("decoder_max_vocab", 100000, "Summary vocabulary size, -1 - no limit")
	f.Int("epochs", 300, "Training epochs")
	f.String("data_path", "", "Spreadsheet with id_articles, articles, abstracts columns")
	f.String("checkpoint_path", "", "Checkpoints dir")
	f.String("vocab_save_dir", "", "Dir to save vocabularies")
	f.Bool("filters", false, "Remove punctuation from texts")
	f.Bool("no_filters", false, "Keep punctuation in texts")
	f.Float64("dropout", 0.1, "Dropout rate")
	f.Int("warmup_steps", 4000, "Learning rate warmup steps")
	f.Int("replicas", 0, "Replicas to run in parallel, 0 - number of CPUs")
	f.Int64("seed", 0, "Random seed, 0 - time based")
	f.Int("max_to_keep", 5, "Checkpoints kept in an epoch dir")
	f.Bool("restore", false, "Continue from the newest epoch checkpoint")
	f.Int("metrics_port", 0, "Port for /metrics, /live, /ready, 0 - no server")
	cmdapp.CheckOrPanic(cmdapp.BindFlags(rootCmd), "Can't bind flags")
}

//Execute starts the training
func Execute() {
	cmdapp.Execute(rootCmd)
}

func run(cmd *cobra.Command, args []string) {
	cmdapp.Log.Info("Starting " + appName)
	opt := optionsFromConfig()
	cmdapp.CheckOrPanic(opt.Validate(), "Wrong options")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		sig := cmdapp.NewSignalChannel()
		select {
		case <-sig:
			cmdapp.Log.Info("Got stop signal, finishing after the current batch")
			cancel()
		case <-ctx.Done():
		}
	}()

	var srv *serverData
	var srvErr <-chan error
	if opt.MetricsPort > 0 {
		srv = newServerData(opt.MetricsPort)
		srvErr = startWebServer(ctx, srv)
	}

	tr, closeFunc, err := newTrainer(opt)
	cmdapp.CheckOrPanic(err, "Can't init trainer")
	defer closeFunc()
	if srv != nil {
		srv.setReady()
	}

	err = tr.Run(ctx)
	if errors.Cause(err) == context.Canceled {
		cmdapp.Log.Info("Training stopped")
		return
	}
	cmdapp.CheckOrPanic(err, "Training failed")
	if srvErr != nil {
		cancel()
		cmdapp.LogIf(<-srvErr)
	}
	cmdapp.Log.Info("Training finished")
}

func newTrainer(opt *Options) (*Trainer, func(), error) {
	seed := opt.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	cmdapp.Log.Infof("Seed: %d", seed)

	strategy := distribute.NewMirroredStrategy(opt.Replicas)
	cmdapp.Log.Infof("Number of devices: %d", strategy.NumReplicasInSync())

	data, err := prepareData(opt, rand.New(rand.NewSource(seed)))
	if err != nil {
		return nil, nil, err
	}

	cmdapp.Log.Info("Creating model")
	m, err := model.New(model.Config{NumLayers: opt.NumLayers, DModel: opt.DModel, NumHeads: opt.NumHeads,
		DFF: opt.DFF, InputVocab: data.InputVocab, TargetVocab: data.TargetVocab, Dropout: opt.Dropout},
		rand.New(rand.NewSource(seed)))
	if err != nil {
		return nil, nil, errors.Wrap(err, "Can't create model")
	}
	cmdapp.Log.Infof("Model params: %d", m.NumParameters())

	adam := optimizer.NewAdam(optimizer.NewCustomSchedule(opt.DModel, opt.WarmupSteps), 0.9, 0.98, 1e-9)

	res := NewTrainer(m, adam, strategy, data.Dataset, seed, opt.Dropout > 0)
	res.RunID = uuid.New().String()
	res.Epochs = opt.Epochs
	res.CheckpointPath = opt.CheckpointPath
	res.MaxToKeep = opt.MaxToKeep
	cmdapp.Log.Infof("Run ID: %s", res.RunID)

	tm, err := metrics.NewTraining()
	if err != nil {
		return nil, nil, errors.Wrap(err, "Can't init metrics")
	}
	res.StepObserver = tm
	res.Reporters = append(res.Reporters, &promReporter{metrics: tm})

	var closers []func()
	closeFunc := func() {
		for _, c := range closers {
			c()
		}
	}
	if cmdapp.Config.GetString("mongo.url") != "" {
		sp, err := mongo.NewSessionProvider()
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, sp.Close)
		saver, err := mongo.NewEpochSaver(sp)
		if err != nil {
			closeFunc()
			return nil, nil, err
		}
		res.Reporters = append(res.Reporters, &mongoReporter{saver: saver})
	}
	if cmdapp.Config.GetString("messageServer.url") != "" {
		cp, err := rabbit.NewChannelProvider()
		if err != nil {
			closeFunc()
			return nil, nil, err
		}
		closers = append(closers, cp.Close)
		res.Reporters = append(res.Reporters, &messageReporter{
			sender: rabbit.NewSender(cp, rabbit.DeclareQueues(messages.CheckpointSaved))})
	}

	if opt.Restore {
		if err := res.Restore(); err != nil {
			closeFunc()
			return nil, nil, errors.Wrap(err, "Can't restore")
		}
	}
	return res, closeFunc, nil
}
