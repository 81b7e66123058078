package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"runtime"

	raytracer "github.com/WyvernAllow/voxel-raytracer"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
	"github.com/xlab/closer"
)

func init() {
	// glfw and the vulkan surface must stay on the main thread
	runtime.LockOSThread()
}

func main() {
	cfg := raytracer.DefaultConfig()
	flag.BoolVar(&cfg.EnableValidation, "debug", false, "enable validation layers and trace logging")
	flag.DurationVar(&cfg.FenceTimeout, "fence-timeout", cfg.FenceTimeout, "frame fence wait bound, 0 waits forever")
	flag.DurationVar(&cfg.AcquireTimeout, "acquire-timeout", cfg.AcquireTimeout, "image acquire bound, 0 waits forever")
	flag.StringVar(&cfg.ShaderDir, "shaders", cfg.ShaderDir, "directory holding vert.spv and frag.spv")
	flag.StringVar(&cfg.LogPath, "log", "", "append log records to this file instead of stderr")
	level := flag.String("log-level", "info", "trace, debug, info, warn, error or critical")
	flag.Parse()

	var err error
	if cfg.LogLevel, err = raytracer.ParseLevel(*level); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if cfg.EnableValidation {
		cfg.LogLevel = raytracer.LevelTrace
	}

	log, err := raytracer.OpenLogger(cfg.LogPath, cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := run(cfg, log); err != nil {
		log.Critical("renderer stopped", "kind", raytracer.KindOf(err), "error", err)
		log.Close()
		closer.Exit(1)
	}
	log.Close()
	closer.Close()
}

func run(cfg raytracer.Config, log *raytracer.Logger) error {
	// a signal cancels the loop and holds the exit until teardown is finished
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	defer close(done)
	closer.Bind(func() {
		cancel()
		<-done
	})

	if err := glfw.Init(); err != nil {
		return errors.Wrap(err, "init glfw")
	}
	defer glfw.Terminate()

	vk.SetGetInstanceProcAddr(glfw.GetVulkanGetInstanceProcAddress())
	if err := vk.Init(); err != nil {
		return errors.Wrap(err, "init vulkan loader")
	}

	window, err := raytracer.OpenGLFWWindow(cfg)
	if err != nil {
		return err
	}
	defer window.Destroy()

	renderer, err := raytracer.NewRenderer(raytracer.VulkanDriver{}, window, cfg, log)
	if err != nil {
		return err
	}
	defer renderer.Destroy()

	err = renderer.Run(ctx)
	stats := renderer.Stats()
	log.Info("render loop finished",
		"frames", stats.Frames,
		"suboptimal", stats.Suboptimal,
		"out_of_date", stats.OutOfDate,
		"present_errors", stats.PresentErrors)
	return err
}
