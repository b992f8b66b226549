package main

import (
	"errors"

	"marketplace/internal/apperror"
	"marketplace/internal/model"
	"marketplace/internal/repository"
	"marketplace/internal/service"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var seedAdmin struct {
	username string
	email    string
	password string
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed default roles, permissions and an optional admin user",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDatabase()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		roleRepo := repository.NewRoleRepository(db)
		roles := service.NewRoleService(roleRepo, repository.NewTransactionManager(db))
		if err := roles.SeedDefaultRolesAndPermissions(ctx); err != nil {
			return err
		}
		log.Info("default roles and permissions seeded")

		if seedAdmin.email == "" {
			return nil
		}
		users := service.NewUserService(repository.NewUserRepository(db), roleRepo, cfg.JWT)
		_, err = users.CreateUser(ctx, service.CreateUserRequest{
			Username: seedAdmin.username,
			Email:    seedAdmin.email,
			Password: seedAdmin.password,
			Role:     model.RoleAdmin,
			UserType: model.UserTypeAdmin,
		})
		if errors.Is(err, apperror.ErrConflict) {
			log.Info("admin user already exists", zap.String("email", seedAdmin.email))
			return nil
		}
		if err != nil {
			return err
		}
		log.Info("admin user created", zap.String("email", seedAdmin.email))
		return nil
	},
}

func init() {
	seedCmd.Flags().StringVar(&seedAdmin.username, "admin-username", "admin", "username of the seeded admin")
	seedCmd.Flags().StringVar(&seedAdmin.email, "admin-email", "", "email of the seeded admin; no admin is created when empty")
	seedCmd.Flags().StringVar(&seedAdmin.password, "admin-password", "", "password of the seeded admin")
}
