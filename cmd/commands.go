// SPDX-License-Identifier: MIT
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"soundhub/internal/analysis"
	"soundhub/internal/audio"
	"soundhub/internal/output"
	"soundhub/internal/rtcstream"
	"soundhub/internal/sound"
	"soundhub/internal/transport"
	"soundhub/internal/transport/udp"
	"soundhub/internal/tui"
)

const (
	meterInterval      = 50 * time.Millisecond
	voiceLevelInterval = 100 * time.Millisecond
	voiceSmoothing     = 0.8
	// VoiceLevelEvent carries a received voice stream's level to peers.
	VoiceLevelEvent = "voiceLevel"
)

// playFlags are shared by commands that start sounds.
type playFlags struct {
	channel string
	volume  float64
	loop    bool
}

func (p *playFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&p.channel, "channel", "c", audio.Environment,
		"Channel to play on ("+strings.Join(audio.ChannelNames, ", ")+")")
	cmd.Flags().Float64Var(&p.volume, "volume", 1, "Sound volume between 0 and 1")
	cmd.Flags().BoolVar(&p.loop, "loop", false, "Loop until interrupted")
}

func (p *playFlags) options(onEnded func(*sound.Sound)) audio.PlayOptions {
	return audio.PlayOptions{
		Channel: p.channel,
		Playback: sound.PlayOptions{
			Volume:  sound.Float(p.volume),
			Loop:    sound.Bool(p.loop),
			OnEnded: onEnded,
		},
	}
}

func newPlayCommand(o *options) *cobra.Command {
	var p playFlags
	var meters bool

	cmd := &cobra.Command{
		Use:   "play <src>...",
		Short: "Play audio files or URLs on a channel",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			a, err := newApp(o)
			if err != nil {
				return err
			}
			defer closeInto(&err, a)
			if err := a.start(); err != nil {
				return err
			}
			ctx := cmd.Context()

			ended := make(chan struct{}, len(args))
			playing := 0
			for _, src := range args {
				s, playErr := a.helper.Play(ctx, src, p.options(func(*sound.Sound) {
					ended <- struct{}{}
				}))
				if playErr != nil {
					return playErr
				}
				defer closeInto(&err, s)
				if s.Failed() {
					fmt.Fprintf(os.Stderr, "skipping %s: failed to load\n", src)
					continue
				}
				playing++
			}
			if playing == 0 {
				return fmt.Errorf("nothing to play")
			}

			if meters {
				a.helper.EnableAnalyzer(p.channel, audio.AnalyzerOptions{KeepAlive: true})
			}
			ticker := time.NewTicker(meterInterval)
			defer ticker.Stop()
			for playing > 0 {
				select {
				case <-ctx.Done():
					return nil
				case <-ended:
					if !p.loop {
						playing--
					}
				case <-ticker.C:
					if meters {
						printBands(a.helper, p.channel)
					}
				}
			}
			if meters {
				fmt.Println()
			}
			return nil
		},
	}
	p.register(cmd)
	cmd.Flags().BoolVarP(&meters, "meters", "m", false, "Print band levels while playing")
	return cmd
}

// closeInto closes c and joins its error into *err.
func closeInto(err *error, c io.Closer) {
	*err = errors.Join(*err, c.Close())
}

func printBands(h *audio.Helper, channel string) {
	var b strings.Builder
	for _, band := range analysis.Bands() {
		level := h.GetBandLevel(channel, band, audio.BandOptions{})
		fmt.Fprintf(&b, "%s %5.2f  ", band.Range().Name, level)
	}
	fmt.Printf("\r%s", b.String())
}

func newDevicesCommand(o *options) *cobra.Command {
	var pick bool

	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List available audio output devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := output.Initialize(); err != nil {
				return err
			}
			defer output.Terminate()

			if pick {
				d, ok, err := tui.PickDevice(output.Devices)
				if err != nil || !ok {
					return err
				}
				fmt.Printf("Selected %q. Start with --device %d\n", d.Name, d.ID)
				return nil
			}

			devices, err := output.Devices()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tHOST API\tCHANNELS\tRATE\tLATENCY (ms)\t")
			for _, d := range devices {
				name := d.Name
				if d.Default {
					name += " (default)"
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%.0f\t%.1f-%.1f\t\n",
					d.ID, name, d.HostAPI, d.MaxOutputChannels, d.DefaultSampleRate, d.LowLatencyMs, d.HighLatencyMs)
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVarP(&pick, "pick", "p", false, "Choose a device interactively")
	return cmd
}

func newServeCommand(o *options) *cobra.Command {
	var udpEnabled, voice bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the websocket hub and play sounds broadcast by peers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			a, err := newApp(o)
			if err != nil {
				return err
			}
			defer closeInto(&err, a)
			if err := a.start(); err != nil {
				return err
			}
			ctx := cmd.Context()
			tcfg := o.cfg.Transport

			hub := transport.NewHub()
			hub.ListenAndServe(tcfg.WebsocketAddr)
			defer closeInto(&err, hub)
			a.helper.ActivateSocketListeners(hub)

			if cmd.Flags().Changed("udp") {
				tcfg.UDPEnabled = udpEnabled
			}
			if tcfg.UDPEnabled {
				stop, err := startLevelPublisher(a.helper, tcfg.UDPTargetAddress, tcfg.UDPSendInterval)
				if err != nil {
					return err
				}
				defer stop()
			}

			if voice {
				recv, recvErr := rtcstream.NewReceiver(func(id string, s *rtcstream.TrackStream) {
					reportVoice(a.helper, hub, id, s)
				})
				if recvErr != nil {
					return recvErr
				}
				defer closeInto(&err, recv)
				rtcstream.Listen(ctx, hub, recv)
			}

			<-ctx.Done()
			return nil
		},
	}
	cmd.Flags().BoolVar(&udpEnabled, "udp", false, "Publish channel band levels over UDP")
	cmd.Flags().BoolVar(&voice, "voice", false, "Accept voice streams and broadcast their levels")
	return cmd
}

// startLevelPublisher keeps every channel analysed and sends their band
// levels to target.
func startLevelPublisher(h *audio.Helper, target string, interval time.Duration) (func(), error) {
	sender, err := udp.NewSender(target)
	if err != nil {
		return nil, err
	}
	pub, err := udp.NewLevelPublisher(interval, sender, h, clockwork.NewRealClock())
	if err != nil {
		sender.Close()
		return nil, err
	}
	for _, name := range audio.ChannelNames {
		h.EnableAnalyzer(name, audio.AnalyzerOptions{KeepAlive: true})
	}
	pub.Start()
	return func() {
		pub.Close()
		sender.Close()
	}, nil
}

// silenceDecibels replaces the -Inf level of a silent stream, which JSON
// cannot carry.
const silenceDecibels = -160

type voiceLevel struct {
	ID       string  `json:"id"`
	Decibels float64 `json:"decibels"`
}

// reportVoice broadcasts the level of a received voice stream until it
// ends.
func reportVoice(h *audio.Helper, socket transport.Socket, id string, s *rtcstream.TrackStream) {
	ok := h.StartLevelReports(id, s, func(db float64, _ []float32) {
		if math.IsNaN(db) || db < silenceDecibels {
			db = silenceDecibels
		}
		payload := voiceLevel{ID: id, Decibels: db}
		if err := socket.Emit(VoiceLevelEvent, payload, transport.EmitOptions{}); err != nil {
			h.StopLevelReports(id)
		}
	}, voiceLevelInterval, voiceSmoothing)
	if !ok {
		return
	}
	go func() {
		for s.Active() {
			time.Sleep(time.Second)
		}
		h.StopLevelReports(id)
	}()
}

func newSendCommand(o *options) *cobra.Command {
	var p playFlags
	var url string
	var to []string
	var preload bool

	cmd := &cobra.Command{
		Use:   "send <src>",
		Short: "Ask the peers of a hub to play or preload a sound",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			if url == "" {
				url = o.cfg.Transport.WebsocketURL
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			client, err := transport.Dial(ctx, url)
			if err != nil {
				return err
			}
			defer closeInto(&err, client)

			a, err := newApp(o)
			if err != nil {
				return err
			}
			defer closeInto(&err, a)
			a.helper.ActivateSocketListeners(client)

			if preload {
				return a.helper.BroadcastPreload(ctx, args[0])
			}
			_, err = a.helper.Broadcast(ctx, audio.PlayData{
				Src:     args[0],
				Volume:  p.volume,
				Loop:    p.loop,
				Channel: p.channel,
			}, audio.BroadcastOptions{Recipients: to, SkipLocal: true})
			return err
		},
	}
	p.register(cmd)
	cmd.Flags().StringVarP(&url, "url", "u", "", "Hub websocket URL. Defaults to transport.websocket_url")
	cmd.Flags().StringSliceVar(&to, "to", nil, "Peer ids to address. Empty reaches every peer")
	cmd.Flags().BoolVar(&preload, "preload", false, "Preload instead of playing")
	return cmd
}

func newMetersCommand(o *options) *cobra.Command {
	var p playFlags

	cmd := &cobra.Command{
		Use:   "meters [src]...",
		Short: "Show live channel meters with volume and mute controls",
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			a, err := newApp(o)
			if err != nil {
				return err
			}
			defer closeInto(&err, a)
			if err := a.start(); err != nil {
				return err
			}
			for _, name := range audio.ChannelNames {
				a.helper.EnableAnalyzer(name, audio.AnalyzerOptions{KeepAlive: true})
			}
			for _, src := range args {
				if _, err := a.helper.Play(cmd.Context(), src, p.options(nil)); err != nil {
					return err
				}
			}
			return tui.RunMeters(a.helper, audio.ChannelNames, meterInterval)
		},
	}
	p.register(cmd)
	return cmd
}
