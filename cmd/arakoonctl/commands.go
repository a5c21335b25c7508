package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func createCmd() *cobra.Command {
	var (
		clusterID    string
		ip           string
		excludePorts []int
		plugins      []string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a single member cluster",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup()
			if err != nil {
				return err
			}
			ports, err := e.clusters.Create(clusterID, ip, excludePorts, plugins)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "client_port=%d messaging_port=%d\n", ports.ClientPort, ports.MessagingPort)
			return nil
		},
	}
	cmd.Flags().StringVar(&clusterID, "cluster", "", "cluster id")
	cmd.Flags().StringVar(&ip, "ip", "", "address of the first member")
	cmd.Flags().IntSliceVar(&excludePorts, "exclude-ports", nil, "ports not to allocate")
	cmd.Flags().StringSliceVar(&plugins, "plugins", nil, "plugins the cluster loads")
	_ = cmd.MarkFlagRequired("cluster")
	_ = cmd.MarkFlagRequired("ip")
	return cmd
}

func extendCmd() *cobra.Command {
	var (
		clusterID    string
		masterIP     string
		newIP        string
		excludePorts []int
		restart      bool
	)
	cmd := &cobra.Command{
		Use:   "extend",
		Short: "Add a member to a cluster",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup()
			if err != nil {
				return err
			}
			previous, err := e.clusters.MemberIPs(clusterID, masterIP)
			if err != nil {
				return err
			}
			ports, err := e.clusters.Extend(clusterID, masterIP, newIP, excludePorts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "client_port=%d messaging_port=%d\n", ports.ClientPort, ports.MessagingPort)

			if !restart {
				return nil
			}
			ctx, cancel := signalContext()
			defer cancel()
			return e.clusters.RestartAfterAdd(ctx, clusterID, previous, newIP)
		},
	}
	cmd.Flags().StringVar(&clusterID, "cluster", "", "cluster id")
	cmd.Flags().StringVar(&masterIP, "master-ip", "", "address of an existing member")
	cmd.Flags().StringVar(&newIP, "new-ip", "", "address of the joining member")
	cmd.Flags().IntSliceVar(&excludePorts, "exclude-ports", nil, "ports not to allocate")
	cmd.Flags().BoolVar(&restart, "restart", false, "restart the cluster so the new member joins")
	_ = cmd.MarkFlagRequired("cluster")
	_ = cmd.MarkFlagRequired("master-ip")
	_ = cmd.MarkFlagRequired("new-ip")
	return cmd
}

func shrinkCmd() *cobra.Command {
	var (
		clusterID   string
		remainingIP string
		deletedIP   string
		restart     bool
	)
	cmd := &cobra.Command{
		Use:   "shrink",
		Short: "Remove a member from a cluster",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup()
			if err != nil {
				return err
			}
			if err := e.clusters.Shrink(clusterID, remainingIP, deletedIP); err != nil {
				return err
			}
			if !restart {
				return nil
			}
			ips, err := e.clusters.MemberIPs(clusterID, remainingIP)
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()
			return e.clusters.RestartAfterRemove(ctx, clusterID, ips)
		},
	}
	cmd.Flags().StringVar(&clusterID, "cluster", "", "cluster id")
	cmd.Flags().StringVar(&remainingIP, "remaining-ip", "", "address of a member that stays")
	cmd.Flags().StringVar(&deletedIP, "deleted-ip", "", "address of the member to remove")
	cmd.Flags().BoolVar(&restart, "restart", false, "restart the remaining members")
	_ = cmd.MarkFlagRequired("cluster")
	_ = cmd.MarkFlagRequired("remaining-ip")
	_ = cmd.MarkFlagRequired("deleted-ip")
	return cmd
}

func deleteCmd() *cobra.Command {
	var clusterID, ip string
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Tear down every member of a cluster",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup()
			if err != nil {
				return err
			}
			return e.clusters.Delete(clusterID, ip)
		},
	}
	cmd.Flags().StringVar(&clusterID, "cluster", "", "cluster id")
	cmd.Flags().StringVar(&ip, "ip", "", "address of any member")
	_ = cmd.MarkFlagRequired("cluster")
	_ = cmd.MarkFlagRequired("ip")
	return cmd
}

func restartAddCmd() *cobra.Command {
	var (
		clusterID string
		ips       []string
		newIP     string
	)
	cmd := &cobra.Command{
		Use:   "restart-add",
		Short: "Restart a cluster after a member was added",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup()
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()
			return e.clusters.RestartAfterAdd(ctx, clusterID, ips, newIP)
		},
	}
	cmd.Flags().StringVar(&clusterID, "cluster", "", "cluster id")
	cmd.Flags().StringSliceVar(&ips, "ips", nil, "addresses of the members before the addition")
	cmd.Flags().StringVar(&newIP, "new-ip", "", "address of the added member")
	_ = cmd.MarkFlagRequired("cluster")
	_ = cmd.MarkFlagRequired("ips")
	_ = cmd.MarkFlagRequired("new-ip")
	return cmd
}

func restartRemoveCmd() *cobra.Command {
	var (
		clusterID string
		ips       []string
	)
	cmd := &cobra.Command{
		Use:   "restart-remove",
		Short: "Restart a cluster after a member was removed",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup()
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()
			return e.clusters.RestartAfterRemove(ctx, clusterID, ips)
		},
	}
	cmd.Flags().StringVar(&clusterID, "cluster", "", "cluster id")
	cmd.Flags().StringSliceVar(&ips, "ips", nil, "addresses of the remaining members")
	_ = cmd.MarkFlagRequired("cluster")
	_ = cmd.MarkFlagRequired("ips")
	return cmd
}

func waitCmd() *cobra.Command {
	var clusterID string
	cmd := &cobra.Command{
		Use:   "wait",
		Short: "Wait until a cluster answers requests",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup()
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()
			if err := e.clusters.Wait(ctx, clusterID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cluster %s is available\n", clusterID)
			return nil
		},
	}
	cmd.Flags().StringVar(&clusterID, "cluster", "", "cluster id")
	_ = cmd.MarkFlagRequired("cluster")
	return cmd
}

func showCmd() *cobra.Command {
	var clusterID, ip string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print a cluster's configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup()
			if err != nil {
				return err
			}
			config, err := e.clusters.Show(clusterID, ip)
			if err != nil {
				return err
			}
			text, err := config.Render()
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), text)
			return nil
		},
	}
	cmd.Flags().StringVar(&clusterID, "cluster", "", "cluster id")
	cmd.Flags().StringVar(&ip, "ip", "", "address of any member")
	_ = cmd.MarkFlagRequired("cluster")
	_ = cmd.MarkFlagRequired("ip")
	return cmd
}
