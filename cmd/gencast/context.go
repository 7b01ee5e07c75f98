package main

import (
	"path/filepath"
	"strings"
	"sync"

	"github.com/cadrianmae/gencast/internal/config"
	"github.com/cadrianmae/gencast/internal/logger"
)

// commandContext 在子命令之间共享配置加载与日志初始化，
// 保证每次进程生命周期内只执行一次。
type commandContext struct {
	configFlag  *string
	verboseFlag *bool
	quietFlag   *bool

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string, verboseFlag, quietFlag *bool) *commandContext {
	return &commandContext{
		configFlag:  configFlag,
		verboseFlag: verboseFlag,
		quietFlag:   quietFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		path := strings.TrimSpace(*c.configFlag)

		var cfg *config.Config
		var err error
		if path == "" {
			cfg = config.Default()
		} else {
			cfg, err = config.Load(path)
			if err != nil {
				c.configErr = err
				return
			}
		}

		// -q/-v 只影响控制台级别，文件日志始终按配置级别完整记录
		consoleLevel := ""
		if *c.quietFlag {
			consoleLevel = "warn"
		}
		if *c.verboseFlag {
			consoleLevel = "debug"
		}
		logFile := cfg.Log.File
		if logFile == "" {
			logFile = filepath.Join(cfg.Storage.DataDir, "logs", "gencast.log")
		}
		if err := logger.Init(logger.Config{
			Level:        cfg.Log.Level,
			ConsoleLevel: consoleLevel,
			File:         logFile,
		}); err != nil {
			c.configErr = err
			return
		}

		// 配置阶段被钳制的项在 logger 可用后统一告知
		for _, w := range cfg.Warnings {
			logger.Warnf("[config] %s", w)
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}
