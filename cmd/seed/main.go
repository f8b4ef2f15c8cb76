package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"log/slog"
	"math/rand"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sysu-ecnc-dev/campus-schedule/backend/internal/config"
	"github.com/sysu-ecnc-dev/campus-schedule/backend/internal/logging"
	"github.com/sysu-ecnc-dev/campus-schedule/backend/internal/repository"
	"github.com/sysu-ecnc-dev/campus-schedule/backend/internal/seed"
	"github.com/sysu-ecnc-dev/campus-schedule/backend/internal/utils"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	var op int
	var n int
	var icsPath string

	flag.IntVar(&op, "op", 0, "要执行的操作 (1: 插入随机用户, 2: 为所有用户生成随机课表, 3: 从 ICS 文件导入课表)")
	flag.IntVar(&n, "n", 0, "要插入的用户数量，默认使用配置中的数量")
	flag.StringVar(&icsPath, "ics", seed.DefaultICSPath, "导入使用的 ICS 文件")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("无法读取配置文件", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := logging.New(os.Stdout, cfg.Environment)
	slog.SetDefault(logger)

	dbpool, err := sql.Open("pgx", cfg.Database.DSN)
	if err != nil {
		logger.Error("无法创建数据库连接池", "error", err)
		return
	}
	defer dbpool.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Database.ConnectTimeout)*time.Second)
	defer cancel()

	if err := dbpool.PingContext(ctx); err != nil {
		logger.Error("无法连接到数据库", "error", err)
		return
	}

	repo := repository.NewRepository(cfg, dbpool)

	switch op {
	case 0:
		slog.Error("未指定操作")
	case 1:
		if n == 0 {
			n = cfg.Seed.User.Count
		}
		if n < 0 {
			slog.Error("请输入合法的用户数量")
			return
		}

		cnt := 0
		for i := 0; i < n; i++ {
			user, err := utils.GenerateRandomUser(cfg.Seed.User.Password, cfg.Email.UserDomain)
			if err != nil {
				slog.Error("无法生成随机用户", slog.String("error", err.Error()))
				continue
			}

			if err := repo.CreateUser(user); err != nil {
				var pgErr *pgconn.PgError
				if errors.As(err, &pgErr) && pgErr.Code == "23505" {
					// 随机生成的邮箱可能重名
					slog.Warn("邮箱已存在，跳过", slog.String("email", user.Email))
					continue
				}
				slog.Error("无法插入用户", slog.String("email", user.Email), slog.String("error", err.Error()))
				continue
			}

			cnt++
		}

		slog.Info("插入用户成功", slog.Int("count", cnt))
	case 2:
		users, err := repo.GetAllUsers()
		if err != nil {
			slog.Error("无法获取所有用户", slog.String("error", err.Error()))
			return
		}

		cnt := 0
		for _, user := range users {
			ws := utils.GenerateRandomWeeklySchedule(2 + rand.Intn(3))
			if err := repo.SetWeeklySchedule(user.ID, ws); err != nil {
				slog.Error("无法写入课表", slog.Int64("user_id", user.ID), slog.String("error", err.Error()))
				continue
			}

			cnt++
		}

		slog.Info("生成课表成功", slog.Int("count", cnt))
	case 3:
		loc, err := cfg.Location()
		if err != nil {
			slog.Error("无法加载时区", slog.String("error", err.Error()))
			return
		}
		seed.SeedFromICS(repo, icsPath, loc)
	default:
		slog.Error("指定的操作非法")
	}
}
