package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var memberRole string

var memberCmd = &cobra.Command{
	Use:   "member",
	Short: "Manage project memberships",
	Long: `Manage who belongs to a project and with which role.

Roles are ADMIN, MEMBER and OBSERVER. Changing memberships requires the same
rights as deleting the project.`,
}

var memberAddCmd = &cobra.Command{
	Use:   "add <project-id> <user-id>",
	Short: "Add a user to a project",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireServices(); err != nil {
			return err
		}
		projectID, err := parseID("project", args[0])
		if err != nil {
			return err
		}
		userID, err := parseID("user", args[1])
		if err != nil {
			return err
		}
		ctx, actor, err := actorContext(cmd)
		if err != nil {
			return err
		}
		m, err := MemberMgr.AddMember(ctx, actor, projectID, userID, memberRole)
		if err != nil {
			return err
		}
		fmt.Printf("Added user %d to project %d as %s (membership %d)\n", m.UserID, m.ProjectID, m.Role, m.ID)
		return nil
	},
}

var memberRoleCmd = &cobra.Command{
	Use:   "role <membership-id> <role>",
	Short: "Change the role of a membership",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireServices(); err != nil {
			return err
		}
		id, err := parseID("membership", args[0])
		if err != nil {
			return err
		}
		ctx, actor, err := actorContext(cmd)
		if err != nil {
			return err
		}
		m, err := MemberMgr.UpdateRole(ctx, actor, id, args[1])
		if err != nil {
			return err
		}
		fmt.Printf("Membership %d is now %s\n", m.ID, m.Role)
		return nil
	},
}

var memberRemoveCmd = &cobra.Command{
	Use:   "remove <membership-id>",
	Short: "Remove a membership",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireServices(); err != nil {
			return err
		}
		id, err := parseID("membership", args[0])
		if err != nil {
			return err
		}
		ctx, actor, err := actorContext(cmd)
		if err != nil {
			return err
		}
		if err := MemberMgr.RemoveMember(ctx, actor, id); err != nil {
			return err
		}
		fmt.Printf("Removed membership %d\n", id)
		return nil
	},
}

var memberListCmd = &cobra.Command{
	Use:   "list <project-id>",
	Short: "List the members of a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireServices(); err != nil {
			return err
		}
		projectID, err := parseID("project", args[0])
		if err != nil {
			return err
		}
		members, err := MemberMgr.MembersOfProject(cmdContext(cmd), projectID)
		if err != nil {
			return err
		}
		if len(members) == 0 {
			fmt.Println("No members found.")
			return nil
		}
		fmt.Printf("  %-6s %-8s %-9s %s\n", "ID", "USER", "ROLE", "JOINED")
		fmt.Printf("  %-6s %-8s %-9s %s\n", "--", "----", "----", "------")
		for _, m := range members {
			fmt.Printf("  %-6d %-8d %-9s %s\n", m.ID, m.UserID, m.Role, m.JoinedAt.Format("2006-01-02"))
		}
		return nil
	},
}

func init() {
	memberAddCmd.Flags().StringVar(&memberRole, "role", "MEMBER", "Role: ADMIN, MEMBER or OBSERVER")

	memberCmd.AddCommand(memberAddCmd, memberRoleCmd, memberRemoveCmd, memberListCmd)
	rootCmd.AddCommand(memberCmd)
}
